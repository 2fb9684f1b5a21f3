package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
	"github.com/relaycivic/filament/internal/log/sqlite"
	"github.com/relaycivic/filament/internal/workzone"
)

// openLog opens the database, restores the in-memory log from durable
// records, and installs the work-zone validator and durable store. The
// caller owns closing the returned store.
func openLog(ctx context.Context, dbPath string) (*log.Log, *sqlite.Store, error) {
	st, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	validator, err := workzone.NewValidator()
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to compile schemas", err)
	}

	l := log.New(
		log.WithValidator(validator),
		log.WithDurable(st),
	)

	entities, err := st.LoadEntities(ctx)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to load entities", err)
	}
	commits, err := st.LoadAllCommits(ctx)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to load commits", err)
	}
	if err := l.Restore(entities, commits); err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to restore log", err)
	}

	return l, st, nil
}

// parsePayload parses a commit payload from a JSON argument. A leading @
// reads the JSON from a file. Numbers decode via json.Number so integers
// survive without a float detour.
func parsePayload(arg string) (commit.Object, error) {
	if arg == "" {
		return commit.Object{}, nil
	}

	data := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		var err error
		data, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse payload JSON: %w", err)
	}

	return commit.ObjectFromAny(raw)
}

// commitView is the JSON-friendly rendering of a stored commit.
type commitView struct {
	Ref        string          `json:"ref"`
	EntityID   string          `json:"entity_id"`
	Index      uint64          `json:"index"`
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp"`
	AuthorRef  string          `json:"author_ref"`
	Payload    json.RawMessage `json:"payload"`
	CausalRefs []string        `json:"causal_refs,omitempty"`
}

func viewOf(c commit.Commit) (commitView, error) {
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return commitView{}, fmt.Errorf("failed to render payload: %w", err)
	}
	return commitView{
		Ref:        c.Ref,
		EntityID:   c.EntityID,
		Index:      c.Index,
		Type:       string(c.Type),
		Timestamp:  c.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		AuthorRef:  c.AuthorRef,
		Payload:    payload,
		CausalRefs: c.CausalRefs,
	}, nil
}
