// Package log implements the append-only commit log: the single source of
// truth for filament state. It enforces monotonic gapless indexing,
// immutability of stored commits, per-entity linearization, and the
// all-or-nothing append contract.
package log

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/notify"
	"github.com/relaycivic/filament/internal/registry"
)

// Validator gates proposed commits before they are appended. It must be a
// pure predicate: a refusal (non-nil return) means the log stays untouched.
// The candidate commit already carries its assigned ref, index, and
// timestamp when the validator sees it.
type Validator interface {
	Validate(entity registry.Entity, history []commit.Commit, proposed commit.Commit) *Refusal
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(registry.Entity, []commit.Commit, commit.Commit) *Refusal

// Validate implements Validator.
func (f ValidatorFunc) Validate(e registry.Entity, history []commit.Commit, proposed commit.Commit) *Refusal {
	return f(e, history, proposed)
}

// Durable persists successful mutations before observers hear about them.
// Implementations must be atomic per call: either the whole record lands
// or none of it does.
type Durable interface {
	PersistRegister(ctx context.Context, e registry.Entity) error
	PersistAppend(ctx context.Context, c commit.Commit) error
}

// Log composes the entity registry, the commit store, the validator gate,
// and the notification hub. Construct one explicitly and pass it by
// reference; there is no package-level singleton.
type Log struct {
	reg       *registry.Registry
	hub       *notify.Hub
	validator Validator
	durable   Durable
	clock     func() time.Time
	tokens    TokenGenerator

	// mu guards the lock table; each entity gets its own mutex so appends
	// to different entities never contend.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// stateMu guards the commit maps. Commits themselves are immutable
	// once stored; readers only need the maps to be consistent.
	stateMu    sync.RWMutex
	byRef      map[string]commit.Commit
	byEntity   map[string][]commit.Commit
	latestType map[string]map[commit.Type]uint64
}

// Option configures a Log.
type Option func(*Log)

// WithValidator installs the domain validator gate.
func WithValidator(v Validator) Option {
	return func(l *Log) { l.validator = v }
}

// WithDurable installs a durable store. Appends persist before notifying.
func WithDurable(d Durable) Option {
	return func(l *Log) { l.durable = d }
}

// WithClock overrides the timestamp source. Tests use a fixed clock for
// golden trace comparison.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

// WithTokenGenerator overrides the refusal id source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(l *Log) { l.tokens = g }
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		reg:        registry.New(),
		hub:        notify.NewHub(),
		clock:      time.Now,
		tokens:     UUIDv7Generator{},
		locks:      make(map[string]*sync.Mutex),
		byRef:      make(map[string]commit.Commit),
		byEntity:   make(map[string][]commit.Commit),
		latestType: make(map[string]map[commit.Type]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Hub exposes the notification hub for Subscribe/Unsubscribe.
func (l *Log) Hub() *notify.Hub {
	return l.hub
}

// entityLock returns the mutex serializing appends for one entity.
func (l *Log) entityLock(entityID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[entityID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[entityID] = m
	}
	return m
}

// Register creates a new entity with an empty head. Fails with
// CodeAlreadyExists if the id is taken. Entities are permanent.
func (l *Log) Register(ctx context.Context, id, entityType, scope, authorRef string) (registry.Entity, error) {
	if id == "" {
		return registry.Entity{}, fmt.Errorf("entity id is required")
	}

	lock := l.entityLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, exists := l.reg.Get(id); exists {
		return registry.Entity{}, NewAlreadyExistsError(id)
	}

	e := registry.Entity{
		ID:         id,
		Type:       entityType,
		Scope:      scope,
		CreatedAt:  l.clock(),
		LastAuthor: authorRef,
	}

	if l.durable != nil {
		if err := l.durable.PersistRegister(ctx, e); err != nil {
			return registry.Entity{}, fmt.Errorf("persist register: %w", err)
		}
	}

	l.reg.Register(e)
	return e, nil
}

// Entity returns the registry record for id.
func (l *Log) Entity(id string) (registry.Entity, error) {
	e, ok := l.reg.Get(id)
	if !ok {
		return registry.Entity{}, NewNotFoundError(id)
	}
	return e, nil
}

// Entities lists registered entities matching the filter, in insertion
// order.
func (l *Log) Entities(f registry.Filter) []registry.Entity {
	return l.reg.List(f)
}

// Append runs the full pipeline for one proposed commit: entity lookup,
// index assignment, ref derivation, validator gate, durable write, atomic
// head advance, synchronous notification. The whole sequence is a critical
// section keyed by entity id, so concurrent appends to the same entity are
// linearized while other entities proceed untouched.
//
// A failed append (validation or persistence) leaves the log and registry
// byte-for-byte unchanged.
func (l *Log) Append(ctx context.Context, entityID string, p commit.Proposed) (commit.Commit, error) {
	lock := l.entityLock(entityID)
	lock.Lock()
	defer lock.Unlock()

	entity, ok := l.reg.Get(entityID)
	if !ok {
		return commit.Commit{}, NewNotFoundError(entityID)
	}

	nextIndex := entity.HeadIndex + 1
	candidate := commit.Commit{
		Ref:        commit.Ref(entityID, nextIndex),
		EntityID:   entityID,
		Index:      nextIndex,
		Type:       p.Type,
		Timestamp:  l.nextTimestamp(entityID),
		AuthorRef:  p.AuthorRef,
		Payload:    p.Payload.Clone(),
		CausalRefs: append([]string(nil), p.CausalRefs...),
	}

	l.stateMu.RLock()
	history := l.byEntity[entityID]
	l.stateMu.RUnlock()

	if l.validator != nil {
		if refusal := l.validator.Validate(entity, history, candidate); refusal != nil {
			if refusal.ID == "" {
				refusal.ID = l.tokens.Generate()
			}
			return commit.Commit{}, NewRejectedError(entityID, refusal)
		}
	}

	if l.durable != nil {
		if err := l.durable.PersistAppend(ctx, candidate); err != nil {
			return commit.Commit{}, fmt.Errorf("persist append: %w", err)
		}
	}

	l.stateMu.Lock()
	l.byRef[candidate.Ref] = candidate
	l.byEntity[entityID] = append(l.byEntity[entityID], candidate)
	types := l.latestType[entityID]
	if types == nil {
		types = make(map[commit.Type]uint64)
		l.latestType[entityID] = types
	}
	types[candidate.Type] = candidate.Index
	l.stateMu.Unlock()

	l.reg.AdvanceHead(entityID, candidate.Ref, candidate.Index, candidate.AuthorRef)

	l.hub.Publish(candidate)

	return candidate.Clone(), nil
}

// nextTimestamp returns the clock reading clamped so timestamps never go
// backwards within an entity. Must be called under the entity lock.
func (l *Log) nextTimestamp(entityID string) time.Time {
	now := l.clock()
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	if commits := l.byEntity[entityID]; len(commits) > 0 {
		if last := commits[len(commits)-1].Timestamp; now.Before(last) {
			return last
		}
	}
	return now
}

// Get retrieves a stored commit by ref. The returned commit is a clone;
// mutating it has no effect on stored state.
func (l *Log) Get(ref string) (commit.Commit, bool) {
	l.stateMu.RLock()
	c, ok := l.byRef[ref]
	l.stateMu.RUnlock()
	if !ok {
		return commit.Commit{}, false
	}
	return c.Clone(), true
}

// Range returns commits for an entity in [from, to] inclusive, in
// increasing index order. from defaults to 1 when 0; to defaults to the
// head when 0. Bounds beyond the head are clamped.
func (l *Log) Range(entityID string, from, to uint64) ([]commit.Commit, error) {
	entity, ok := l.reg.Get(entityID)
	if !ok {
		return nil, NewNotFoundError(entityID)
	}
	if from == 0 {
		from = 1
	}
	if to == 0 || to > entity.HeadIndex {
		to = entity.HeadIndex
	}
	if to < from {
		return []commit.Commit{}, nil
	}

	l.stateMu.RLock()
	history := l.byEntity[entityID]
	l.stateMu.RUnlock()

	out := make([]commit.Commit, 0, to-from+1)
	for _, c := range history {
		// Indexes are gapless, but scan defensively rather than slice by
		// position.
		if c.Index < from || c.Index > to {
			continue
		}
		out = append(out, c.Clone())
	}
	return out, nil
}

// LatestOfType returns the most recent commit of the given type for an
// entity. Maintained incrementally on append, so this is O(1) instead of a
// reverse scan over the history.
func (l *Log) LatestOfType(entityID string, t commit.Type) (commit.Commit, bool) {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	idx, ok := l.latestType[entityID][t]
	if !ok {
		return commit.Commit{}, false
	}
	for _, c := range l.byEntity[entityID] {
		if c.Index == idx {
			return c.Clone(), true
		}
	}
	return commit.Commit{}, false
}

// CommitCount returns the number of stored commits for an entity.
func (l *Log) CommitCount(entityID string) int {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return len(l.byEntity[entityID])
}

// Restore rebuilds in-memory state from durable records. Commits must be
// supplied in increasing index order per entity; they bypass validation
// because they already passed it when first appended.
func (l *Log) Restore(entities []registry.Entity, commits []commit.Commit) error {
	for _, e := range entities {
		if !l.reg.Restore(e) {
			return fmt.Errorf("restore: duplicate entity %q", e.ID)
		}
	}

	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	for _, c := range commits {
		prev := l.byEntity[c.EntityID]
		var want uint64 = 1
		if len(prev) > 0 {
			want = prev[len(prev)-1].Index + 1
		}
		if c.Index != want {
			return fmt.Errorf("restore: entity %q expected index %d, got %d", c.EntityID, want, c.Index)
		}
		l.byRef[c.Ref] = c
		l.byEntity[c.EntityID] = append(prev, c)
		types := l.latestType[c.EntityID]
		if types == nil {
			types = make(map[commit.Type]uint64)
			l.latestType[c.EntityID] = types
		}
		types[c.Type] = c.Index
	}
	return nil
}
