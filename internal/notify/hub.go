// Package notify fans out "a commit was appended" to per-entity observers.
// Delivery is synchronous, in registration order, and isolated: a
// panicking observer never aborts the append or starves later observers.
package notify

import (
	"sync"

	"github.com/relaycivic/filament/internal/commit"
)

// Observer receives a stored commit after a successful append.
type Observer func(commit.Commit)

// Fault describes an observer panic captured during delivery.
type Fault struct {
	EntityID string
	Token    string
	Value    any
}

type subscription struct {
	token string
	fn    Observer
}

// Hub holds per-entity observer lists. Safe for concurrent use.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[string][]subscription

	// OnFault, if set, is called for every observer panic. Faults are
	// log-worthy but never surface to the appender.
	OnFault func(Fault)
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]subscription)}
}

// Subscribe registers an observer for an entity and returns a token for
// Unsubscribe. Observers fire in registration order.
func (h *Hub) Subscribe(entityID string, fn Observer) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	token := tokenString(h.next)
	h.subs[entityID] = append(h.subs[entityID], subscription{token: token, fn: fn})
	return token
}

// Unsubscribe removes the observer registered under token. Unknown tokens
// are a no-op.
func (h *Hub) Unsubscribe(entityID, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[entityID]
	for i, sub := range list {
		if sub.token == token {
			h.subs[entityID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers the commit to every observer of its entity,
// synchronously. Each delivery gets its own clone so one observer cannot
// poison another's view, and panics are contained per observer.
func (h *Hub) Publish(c commit.Commit) {
	h.mu.Lock()
	list := make([]subscription, len(h.subs[c.EntityID]))
	copy(list, h.subs[c.EntityID])
	h.mu.Unlock()

	for _, sub := range list {
		h.deliver(sub, c)
	}
}

func (h *Hub) deliver(sub subscription, c commit.Commit) {
	defer func() {
		if r := recover(); r != nil {
			if h.OnFault != nil {
				h.OnFault(Fault{EntityID: c.EntityID, Token: sub.token, Value: r})
			}
		}
	}()
	sub.fn(c.Clone())
}

func tokenString(n uint64) string {
	// Tokens only need to be unique within a hub.
	const digits = "0123456789abcdef"
	buf := [18]byte{0: 's', 1: '-'}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n&0xf]
		n >>= 4
	}
	return string(buf[:2]) + string(buf[i:])
}
