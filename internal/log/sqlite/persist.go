package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
	"github.com/relaycivic/filament/internal/registry"
)

// PersistRegister inserts a new entity row. Uses ON CONFLICT DO NOTHING so
// a retried registration of the same entity is idempotent; the in-memory
// registry is the authority on duplicate ids.
func (s *Store) PersistRegister(ctx context.Context, e registry.Entity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities
		(id, type, scope, created_us, last_author, head_ref, head_index)
		VALUES (?, ?, ?, ?, ?, '', 0)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Type,
		e.Scope,
		e.CreatedAt.UnixMicro(),
		e.LastAuthor,
	)
	if err != nil {
		return fmt.Errorf("persist register: %w", err)
	}
	return nil
}

// PersistAppend writes the commit row and advances the head row in a
// single transaction. The head row is re-checked inside the transaction:
// if another writer (another process on the same database file) advanced
// it past commit.Index-1, the append fails with ConcurrencyConflict and
// nothing persists.
func (s *Store) PersistAppend(ctx context.Context, c commit.Commit) error {
	payloadJSON, err := marshalPayload(c.Payload)
	if err != nil {
		return fmt.Errorf("persist append: %w", err)
	}
	causalJSON, err := marshalCausalRefs(c.CausalRefs)
	if err != nil {
		return fmt.Errorf("persist append: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var headIndex uint64
	err = tx.QueryRowContext(ctx, `
		SELECT head_index FROM entities WHERE id = ?
	`, c.EntityID).Scan(&headIndex)
	if err != nil {
		return fmt.Errorf("persist append: read head: %w", err)
	}
	if headIndex != c.Index-1 {
		return log.NewConflictError(c.EntityID, c.Index-1, headIndex)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO commits
		(ref, entity_id, commit_index, type, ts_us, author_ref, payload, causal_refs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Ref,
		c.EntityID,
		c.Index,
		string(c.Type),
		c.Timestamp.UnixMicro(),
		c.AuthorRef,
		payloadJSON,
		causalJSON,
	)
	if err != nil {
		return fmt.Errorf("persist append: insert commit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE entities SET head_ref = ?, head_index = ?, last_author = ?
		WHERE id = ?
	`,
		c.Ref,
		c.Index,
		c.AuthorRef,
		c.EntityID,
	)
	if err != nil {
		return fmt.Errorf("persist append: advance head: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist append: commit tx: %w", err)
	}
	return nil
}

// marshalPayload serializes a payload to canonical JSON TEXT so stored
// rows compare byte-for-byte across replays.
func marshalPayload(payload commit.Object) (string, error) {
	if payload == nil {
		payload = commit.Object{}
	}
	data, err := commit.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func marshalCausalRefs(refs []string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("marshal causal refs: %w", err)
	}
	return string(data), nil
}
