package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycivic/filament/internal/commit"
)

func sample(entityID string) commit.Commit {
	return commit.Commit{
		Ref:      commit.Ref(entityID, 1),
		EntityID: entityID,
		Index:    1,
		Type:     "EVENT_A",
		Payload:  commit.Object{"k": commit.String("v")},
	}
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	h := NewHub()

	var order []string
	h.Subscribe("e1", func(commit.Commit) { order = append(order, "first") })
	h.Subscribe("e1", func(commit.Commit) { order = append(order, "second") })

	h.Publish(sample("e1"))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublishOnlyReachesMatchingEntity(t *testing.T) {
	h := NewHub()

	var hits int
	h.Subscribe("e1", func(commit.Commit) { hits++ })
	h.Subscribe("e2", func(commit.Commit) { hits += 100 })

	h.Publish(sample("e1"))

	assert.Equal(t, 1, hits)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()

	var hits int
	token := h.Subscribe("e1", func(commit.Commit) { hits++ })
	h.Publish(sample("e1"))

	h.Unsubscribe("e1", token)
	h.Publish(sample("e1"))

	assert.Equal(t, 1, hits)

	// Unknown token is a no-op.
	h.Unsubscribe("e1", "nope")
}

func TestPanickingObserverIsIsolated(t *testing.T) {
	h := NewHub()

	var faults []Fault
	h.OnFault = func(f Fault) { faults = append(faults, f) }

	var delivered bool
	h.Subscribe("e1", func(commit.Commit) { panic("observer bug") })
	h.Subscribe("e1", func(commit.Commit) { delivered = true })

	assert.NotPanics(t, func() { h.Publish(sample("e1")) })

	assert.True(t, delivered, "later observers still fire")
	require.Len(t, faults, 1)
	assert.Equal(t, "e1", faults[0].EntityID)
	assert.Equal(t, "observer bug", faults[0].Value)
}

func TestEachDeliveryGetsOwnClone(t *testing.T) {
	h := NewHub()

	h.Subscribe("e1", func(c commit.Commit) {
		c.Payload["k"] = commit.String("tampered")
	})
	var seen commit.Commit
	h.Subscribe("e1", func(c commit.Commit) { seen = c })

	original := sample("e1")
	h.Publish(original)

	assert.True(t, commit.Equal(commit.String("v"), seen.Payload["k"]))
	assert.True(t, commit.Equal(commit.String("v"), original.Payload["k"]))
}

func TestSubscribeTokensAreUnique(t *testing.T) {
	h := NewHub()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := h.Subscribe("e1", func(commit.Commit) {})
		assert.False(t, seen[token])
		seen[token] = true
	}
}
