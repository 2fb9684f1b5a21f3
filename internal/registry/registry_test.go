package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()

	ok := r.Register(Entity{
		ID:         "zone.acme.eng.relay",
		Type:       "workzone",
		Scope:      "org.acme",
		CreatedAt:  time.Now(),
		LastAuthor: "author:ops",
	})
	require.True(t, ok)

	e, found := r.Get("zone.acme.eng.relay")
	require.True(t, found)
	assert.Equal(t, "workzone", e.Type)
	assert.Equal(t, uint64(0), e.HeadIndex)
	assert.Empty(t, e.HeadRef)
}

func TestRegisterForcesEmptyHead(t *testing.T) {
	r := New()

	r.Register(Entity{ID: "e1", HeadRef: "sneaky", HeadIndex: 42})

	e, _ := r.Get("e1")
	assert.Empty(t, e.HeadRef)
	assert.Equal(t, uint64(0), e.HeadIndex)
}

func TestRegisterDuplicateRefused(t *testing.T) {
	r := New()

	require.True(t, r.Register(Entity{ID: "e1", Type: "workzone"}))
	assert.False(t, r.Register(Entity{ID: "e1", Type: "unit"}))

	// Original record survives.
	e, _ := r.Get("e1")
	assert.Equal(t, "workzone", e.Type)
	assert.Equal(t, 1, r.Len())
}

func TestListInsertionOrderAndFilters(t *testing.T) {
	r := New()
	r.Register(Entity{ID: "c", Type: "workzone", Scope: "org.acme.eng"})
	r.Register(Entity{ID: "a", Type: "unit", Scope: "org.acme.ops"})
	r.Register(Entity{ID: "b", Type: "workzone", Scope: "org.beta"})

	all := r.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[1].ID)
	assert.Equal(t, "b", all[2].ID)

	zones := r.List(Filter{Type: "workzone"})
	require.Len(t, zones, 2)

	acme := r.List(Filter{Scope: "org.acme"})
	require.Len(t, acme, 2)

	both := r.List(Filter{Scope: "org.acme", Type: "workzone"})
	require.Len(t, both, 1)
	assert.Equal(t, "c", both[0].ID)
}

func TestAdvanceHead(t *testing.T) {
	r := New()
	r.Register(Entity{ID: "e1", LastAuthor: "author:ops"})

	require.True(t, r.AdvanceHead("e1", "ref-1", 1, "author:alice"))

	e, _ := r.Get("e1")
	assert.Equal(t, "ref-1", e.HeadRef)
	assert.Equal(t, uint64(1), e.HeadIndex)
	assert.Equal(t, "author:alice", e.LastAuthor)

	assert.False(t, r.AdvanceHead("ghost", "ref-1", 1, "author:alice"))
}

func TestRestoreKeepsHead(t *testing.T) {
	r := New()

	require.True(t, r.Restore(Entity{ID: "e1", HeadRef: "ref-5", HeadIndex: 5}))

	e, _ := r.Get("e1")
	assert.Equal(t, uint64(5), e.HeadIndex)
	assert.Equal(t, "ref-5", e.HeadRef)

	assert.False(t, r.Restore(Entity{ID: "e1"}))
}
