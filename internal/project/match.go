package project

import (
	"context"
	"slices"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
)

// TypeMatchEvaluated records a three-way match evaluation on a match
// entity's stream.
const TypeMatchEvaluated commit.Type = "MATCH_EVALUATED"

// Match statuses.
const (
	MatchOK       = "MATCHED"
	MatchMismatch = "MISMATCHED"
)

// Snapshots are the latest-relevant upstream commits feeding one
// evaluation: purchase order, goods receipt, and invoice.
type Snapshots struct {
	PO      commit.Commit
	Receipt commit.Commit
	Invoice commit.Commit
}

// refs returns the ordered snapshot ref triple used for dedupe.
func (s Snapshots) refs() []string {
	return []string{s.PO.Ref, s.Receipt.Ref, s.Invoice.Ref}
}

// Evaluation is the computed three-way match result.
type Evaluation struct {
	Status     string
	Mismatches []string
}

// Evaluate compares the snapshots: receipt quantity against PO quantity,
// invoice amount against PO amount. Pure; order of checks is fixed so the
// mismatch list is deterministic.
func Evaluate(s Snapshots) Evaluation {
	var mismatches []string

	poQty, _ := s.PO.IntField("quantity")
	rcQty, _ := s.Receipt.IntField("quantity")
	if poQty != rcQty {
		mismatches = append(mismatches, "quantity")
	}

	poAmt, _ := s.PO.IntField("amountCents")
	invAmt, _ := s.Invoice.IntField("amountCents")
	if poAmt != invAmt {
		mismatches = append(mismatches, "amount")
	}

	if len(mismatches) > 0 {
		return Evaluation{Status: MatchMismatch, Mismatches: mismatches}
	}
	return Evaluation{Status: MatchOK}
}

// BuildEvaluation turns an evaluation into a proposed commit. The snapshot
// refs travel as causal refs, establishing provenance and carrying the
// dedupe identity.
func BuildEvaluation(s Snapshots, authorRef string) commit.Proposed {
	eval := Evaluate(s)
	payload := commit.Object{
		"status": commit.String(eval.Status),
	}
	if len(eval.Mismatches) > 0 {
		arr := make(commit.Array, len(eval.Mismatches))
		for i, m := range eval.Mismatches {
			arr[i] = commit.String(m)
		}
		payload["mismatches"] = arr
	}
	return commit.Proposed{
		Type:       TypeMatchEvaluated,
		AuthorRef:  authorRef,
		Payload:    payload,
		CausalRefs: s.refs(),
	}
}

// Evaluator appends MATCH_EVALUATED commits to a match entity's stream,
// skipping appends whose inputs are unchanged.
type Evaluator struct {
	Log *log.Log
	// AuthorRef identifies the automated evaluator in appended commits.
	AuthorRef string
}

// Run evaluates the snapshots against the match entity. If the last
// recorded evaluation consumed the same ordered snapshot refs, nothing is
// appended and appended=false: re-running over unchanged inputs never
// grows the log. Refs are content-derived and commits immutable, so ref
// equality is input equality.
func (e *Evaluator) Run(ctx context.Context, matchEntityID string, s Snapshots) (commit.Commit, bool, error) {
	if last, ok := e.Log.LatestOfType(matchEntityID, TypeMatchEvaluated); ok {
		if slices.Equal(last.CausalRefs, s.refs()) {
			return commit.Commit{}, false, nil
		}
	}

	stored, err := e.Log.Append(ctx, matchEntityID, BuildEvaluation(s, e.AuthorRef))
	if err != nil {
		return commit.Commit{}, false, err
	}
	return stored, true, nil
}
