package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
	"github.com/relaycivic/filament/internal/registry"
	"github.com/relaycivic/filament/internal/testutil"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testEntity(id string) registry.Entity {
	return registry.Entity{
		ID:         id,
		Type:       "workzone",
		Scope:      "org.acme",
		CreatedAt:  testutil.Epoch,
		LastAuthor: "author:ops",
	}
}

func storedCommit(entityID string, index uint64, ts time.Time) commit.Commit {
	return commit.Commit{
		Ref:       commit.Ref(entityID, index),
		EntityID:  entityID,
		Index:     index,
		Type:      "EVENT_A",
		Timestamp: ts,
		AuthorRef: "author:alice",
		Payload:   commit.Object{"n": commit.Int(int64(index))},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filament.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestPersistRegisterIdempotent(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	e := testEntity("zone.acme.eng.relay")
	require.NoError(t, st.PersistRegister(ctx, e))
	require.NoError(t, st.PersistRegister(ctx, e))

	entities, err := st.LoadEntities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, e.ID, entities[0].ID)
	assert.Equal(t, e.Type, entities[0].Type)
	assert.Equal(t, e.Scope, entities[0].Scope)
	assert.Equal(t, e.CreatedAt, entities[0].CreatedAt)
	assert.Equal(t, uint64(0), entities[0].HeadIndex)
	assert.Empty(t, entities[0].HeadRef)
}

func TestPersistAppendRoundtrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.PersistRegister(ctx, testEntity("e1")))

	c := storedCommit("e1", 1, testutil.Epoch.Add(5*time.Millisecond))
	c.CausalRefs = []string{"abc", "def"}
	require.NoError(t, st.PersistAppend(ctx, c))

	commits, err := st.LoadCommits(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, commits, 1)

	got := commits[0]
	assert.Equal(t, c.Ref, got.Ref)
	assert.Equal(t, c.Index, got.Index)
	assert.Equal(t, c.Type, got.Type)
	assert.Equal(t, c.Timestamp, got.Timestamp)
	assert.Equal(t, c.AuthorRef, got.AuthorRef)
	assert.Equal(t, c.CausalRefs, got.CausalRefs)
	assert.True(t, commit.Equal(commit.Int(1), got.Payload["n"]))

	entities, err := st.LoadEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), entities[0].HeadIndex)
	assert.Equal(t, c.Ref, entities[0].HeadRef)
	assert.Equal(t, "author:alice", entities[0].LastAuthor)
}

func TestPersistAppendEmptyPayloadAndRefs(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.PersistRegister(ctx, testEntity("e1")))

	c := storedCommit("e1", 1, testutil.Epoch)
	c.Payload = commit.Object{}
	require.NoError(t, st.PersistAppend(ctx, c))

	commits, err := st.LoadCommits(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Empty(t, commits[0].Payload)
	assert.Nil(t, commits[0].CausalRefs)
}

func TestPersistAppendHeadConflict(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.PersistRegister(ctx, testEntity("e1")))
	require.NoError(t, st.PersistAppend(ctx, storedCommit("e1", 1, testutil.Epoch)))

	// Replaying index 1 against head 1 loses the race check.
	err := st.PersistAppend(ctx, storedCommit("e1", 1, testutil.Epoch))
	require.Error(t, err)
	assert.True(t, log.IsConflict(err))

	// A gap past the head fails the same way.
	err = st.PersistAppend(ctx, storedCommit("e1", 3, testutil.Epoch))
	require.Error(t, err)
	assert.True(t, log.IsConflict(err))

	count, err := st.CommitCount(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetCommit(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.PersistRegister(ctx, testEntity("e1")))
	c := storedCommit("e1", 1, testutil.Epoch)
	require.NoError(t, st.PersistAppend(ctx, c))

	got, err := st.GetCommit(ctx, c.Ref)
	require.NoError(t, err)
	assert.Equal(t, c.Ref, got.Ref)
	assert.Equal(t, "e1", got.EntityID)

	_, err = st.GetCommit(ctx, "no-such-ref")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestLoadAllCommitsOrdering(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	clock := testutil.NewClock()

	require.NoError(t, st.PersistRegister(ctx, testEntity("e1")))
	require.NoError(t, st.PersistRegister(ctx, testEntity("e2")))

	// Interleave writes across entities.
	require.NoError(t, st.PersistAppend(ctx, storedCommit("e1", 1, clock.Now())))
	require.NoError(t, st.PersistAppend(ctx, storedCommit("e2", 1, clock.Now())))
	require.NoError(t, st.PersistAppend(ctx, storedCommit("e1", 2, clock.Now())))
	require.NoError(t, st.PersistAppend(ctx, storedCommit("e2", 2, clock.Now())))

	all, err := st.LoadAllCommits(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)

	// Grouped by entity registration order, ascending index within each.
	assert.Equal(t, "e1", all[0].EntityID)
	assert.Equal(t, uint64(1), all[0].Index)
	assert.Equal(t, "e1", all[1].EntityID)
	assert.Equal(t, uint64(2), all[1].Index)
	assert.Equal(t, "e2", all[2].EntityID)
	assert.Equal(t, uint64(1), all[2].Index)
	assert.Equal(t, "e2", all[3].EntityID)
	assert.Equal(t, uint64(2), all[3].Index)
}

// TestLogSurvivesReopen runs the full durability cycle: append through a
// durable log, reopen the database, restore, and keep appending.
func TestLogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filament.db")
	ctx := context.Background()

	st, err := Open(path)
	require.NoError(t, err)

	l := log.New(log.WithDurable(st), log.WithClock(testutil.NewClock().Now))
	_, err = l.Register(ctx, "e1", "workzone", "org.acme", "author:ops")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = l.Append(ctx, "e1", commit.Proposed{
			Type:      "EVENT_A",
			AuthorRef: "author:alice",
			Payload:   commit.Object{"i": commit.Int(int64(i))},
		})
		require.NoError(t, err)
	}
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	entities, err := st.LoadEntities(ctx)
	require.NoError(t, err)
	commits, err := st.LoadAllCommits(ctx)
	require.NoError(t, err)

	restored := log.New(log.WithDurable(st), log.WithClock(testutil.NewClockAt(testutil.Epoch.Add(time.Hour), time.Millisecond).Now))
	require.NoError(t, restored.Restore(entities, commits))

	e, err := restored.Entity("e1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), e.HeadIndex)

	stored, err := restored.Append(ctx, "e1", commit.Proposed{
		Type:      "EVENT_A",
		AuthorRef: "author:alice",
		Payload:   commit.Object{"i": commit.Int(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stored.Index)

	count, err := st.CommitCount(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
