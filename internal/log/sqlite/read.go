package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/registry"
)

// LoadEntities returns all entity rows in registration order (rowid).
func (s *Store) LoadEntities(ctx context.Context) ([]registry.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, scope, created_us, last_author, head_ref, head_index
		FROM entities
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := []registry.Entity{}
	for rows.Next() {
		var e registry.Entity
		var createdUS int64
		if err := rows.Scan(&e.ID, &e.Type, &e.Scope, &createdUS, &e.LastAuthor, &e.HeadRef, &e.HeadIndex); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.CreatedAt = time.UnixMicro(createdUS).UTC()
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// LoadAllCommits returns every commit, grouped by entity insertion order
// and ordered by commit_index within each entity, so Restore sees each
// entity's sequence gapless and ascending.
func (s *Store) LoadAllCommits(ctx context.Context) ([]commit.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.ref, c.entity_id, c.commit_index, c.type, c.ts_us, c.author_ref, c.payload, c.causal_refs
		FROM commits c
		JOIN entities e ON c.entity_id = e.id
		ORDER BY e.rowid ASC, c.commit_index ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	return scanCommits(rows)
}

// LoadCommits returns one entity's commits in increasing index order.
func (s *Store) LoadCommits(ctx context.Context, entityID string) ([]commit.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, entity_id, commit_index, type, ts_us, author_ref, payload, causal_refs
		FROM commits
		WHERE entity_id = ?
		ORDER BY commit_index ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	return scanCommits(rows)
}

// GetCommit retrieves a single commit by ref.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetCommit(ctx context.Context, ref string) (commit.Commit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ref, entity_id, commit_index, type, ts_us, author_ref, payload, causal_refs
		FROM commits
		WHERE ref = ?
	`, ref)

	var c commit.Commit
	var typ, payloadJSON, causalJSON string
	var tsUS int64
	if err := row.Scan(&c.Ref, &c.EntityID, &c.Index, &typ, &tsUS, &c.AuthorRef, &payloadJSON, &causalJSON); err != nil {
		return commit.Commit{}, err
	}
	return finishCommit(c, typ, tsUS, payloadJSON, causalJSON)
}

// CommitCount returns the number of stored commits for an entity.
func (s *Store) CommitCount(ctx context.Context, entityID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM commits WHERE entity_id = ?
	`, entityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count commits: %w", err)
	}
	return count, nil
}

func scanCommits(rows *sql.Rows) ([]commit.Commit, error) {
	commits := []commit.Commit{}
	for rows.Next() {
		var c commit.Commit
		var typ, payloadJSON, causalJSON string
		var tsUS int64
		if err := rows.Scan(&c.Ref, &c.EntityID, &c.Index, &typ, &tsUS, &c.AuthorRef, &payloadJSON, &causalJSON); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		done, err := finishCommit(c, typ, tsUS, payloadJSON, causalJSON)
		if err != nil {
			return nil, err
		}
		commits = append(commits, done)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return commits, nil
}

func finishCommit(c commit.Commit, typ string, tsUS int64, payloadJSON, causalJSON string) (commit.Commit, error) {
	c.Type = commit.Type(typ)
	c.Timestamp = time.UnixMicro(tsUS).UTC()

	var payload commit.Object
	if payloadJSON != "" && payloadJSON != "{}" {
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return commit.Commit{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	} else {
		payload = commit.Object{}
	}
	c.Payload = payload

	var causalRefs []string
	if err := json.Unmarshal([]byte(causalJSON), &causalRefs); err != nil {
		return commit.Commit{}, fmt.Errorf("unmarshal causal refs: %w", err)
	}
	if len(causalRefs) == 0 {
		causalRefs = nil
	}
	c.CausalRefs = causalRefs

	return c, nil
}
