package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
)

func docCommit(entityID string, index uint64, commitType commit.Type, qty, amount int64) commit.Commit {
	return commit.Commit{
		Ref:      commit.Ref(entityID, index),
		EntityID: entityID,
		Index:    index,
		Type:     commitType,
		Payload: commit.Object{
			"quantity":    commit.Int(qty),
			"amountCents": commit.Int(amount),
		},
	}
}

func matchedSnapshots() Snapshots {
	return Snapshots{
		PO:      docCommit("po-1", 1, "PO_CREATED", 10, 5000),
		Receipt: docCommit("rc-1", 1, "GOODS_RECEIVED", 10, 0),
		Invoice: docCommit("inv-1", 1, "INVOICE_RECEIVED", 0, 5000),
	}
}

func TestEvaluateMatched(t *testing.T) {
	eval := Evaluate(matchedSnapshots())

	assert.Equal(t, MatchOK, eval.Status)
	assert.Empty(t, eval.Mismatches)
}

func TestEvaluateQuantityMismatch(t *testing.T) {
	s := matchedSnapshots()
	s.Receipt = docCommit("rc-1", 1, "GOODS_RECEIVED", 8, 0)

	eval := Evaluate(s)
	assert.Equal(t, MatchMismatch, eval.Status)
	assert.Equal(t, []string{"quantity"}, eval.Mismatches)
}

func TestEvaluateBothMismatchesOrdered(t *testing.T) {
	s := matchedSnapshots()
	s.Receipt = docCommit("rc-1", 1, "GOODS_RECEIVED", 8, 0)
	s.Invoice = docCommit("inv-1", 1, "INVOICE_RECEIVED", 0, 4800)

	eval := Evaluate(s)
	assert.Equal(t, MatchMismatch, eval.Status)
	assert.Equal(t, []string{"quantity", "amount"}, eval.Mismatches)
}

func TestBuildEvaluationCarriesSnapshotRefs(t *testing.T) {
	s := matchedSnapshots()
	proposed := BuildEvaluation(s, "author:matcher")

	assert.Equal(t, TypeMatchEvaluated, proposed.Type)
	assert.Equal(t, "author:matcher", proposed.AuthorRef)
	assert.Equal(t, []string{s.PO.Ref, s.Receipt.Ref, s.Invoice.Ref}, proposed.CausalRefs)
	assert.True(t, commit.Equal(commit.String(MatchOK), proposed.Payload["status"]))
	_, hasMismatches := proposed.Payload["mismatches"]
	assert.False(t, hasMismatches)
}

func TestBuildEvaluationMismatchPayload(t *testing.T) {
	s := matchedSnapshots()
	s.Invoice = docCommit("inv-1", 1, "INVOICE_RECEIVED", 0, 4800)

	proposed := BuildEvaluation(s, "author:matcher")
	assert.True(t, commit.Equal(commit.String(MatchMismatch), proposed.Payload["status"]))
	assert.True(t, commit.Equal(commit.Array{commit.String("amount")}, proposed.Payload["mismatches"]))
}

func TestEvaluatorRunSkipsUnchangedInputs(t *testing.T) {
	l := log.New()
	ctx := context.Background()
	_, err := l.Register(ctx, "match-1", "match", "org.acme", "author:ops")
	require.NoError(t, err)

	ev := &Evaluator{Log: l, AuthorRef: "author:matcher"}
	s := matchedSnapshots()

	stored, appended, err := ev.Run(ctx, "match-1", s)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, uint64(1), stored.Index)

	// Same snapshots again: nothing appended.
	_, appended, err = ev.Run(ctx, "match-1", s)
	require.NoError(t, err)
	assert.False(t, appended)

	// Changed invoice snapshot: a new evaluation lands.
	s.Invoice = docCommit("inv-1", 2, "INVOICE_CORRECTED", 0, 4800)
	stored, appended, err = ev.Run(ctx, "match-1", s)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, uint64(2), stored.Index)
	assert.True(t, commit.Equal(commit.String(MatchMismatch), stored.Payload["status"]))
}
