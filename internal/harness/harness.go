// Package harness provides a conformance testing framework for the
// filament commit log.
//
// Scenarios are YAML files that register entities, drive append attempts
// through a real log with the work-zone validator installed, and assert
// on the resulting trace and final projected state. Every scenario runs
// against a fresh in-memory log with a deterministic clock and refusal id
// sequence, so the trace is reproducible and suitable for golden file
// comparison.
package harness

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
	"github.com/relaycivic/filament/internal/testutil"
	"github.com/relaycivic/filament/internal/workzone"
)

// seqTokens generates refusal ids refusal-0001, refusal-0002, ...
// Unbounded, unlike log.FixedGenerator, because scenarios do not know how
// many refusals they will produce up front.
type seqTokens struct {
	mu sync.Mutex
	n  int
}

func (g *seqTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("refusal-%04d", g.n)
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory log for isolation:
//  1. Build log with work-zone validator, fixed clock, sequential tokens
//  2. Register declared entities
//  3. Execute steps, recording each outcome in the trace and checking the
//     expect clause
//  4. Evaluate assertions against final heads and projected state
func Run(scenario *Scenario) (*Result, error) {
	validator, err := workzone.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile schemas: %w", err)
	}

	clock := testutil.NewClock()
	l := log.New(
		log.WithValidator(validator),
		log.WithClock(clock.Now),
		log.WithTokenGenerator(&seqTokens{}),
	)

	ctx := context.Background()
	result := NewResult()

	for i, e := range scenario.Entities {
		if _, err := l.Register(ctx, e.ID, e.Type, e.Scope, e.Author); err != nil {
			return nil, fmt.Errorf("entities[%d]: failed to register %q: %w", i, e.ID, err)
		}
	}

	for i, step := range scenario.Steps {
		if err := executeStep(ctx, l, i, step, result); err != nil {
			return nil, err
		}
	}

	evaluateAssertions(l, scenario.Assertions, result)

	return result, nil
}

// executeStep appends one proposed commit and checks the outcome against
// the step's expect clause. Refusals and mismatches are recorded on the
// result; only infrastructure failures return an error.
func executeStep(ctx context.Context, l *log.Log, i int, step Step, result *Result) error {
	payload, err := commit.ObjectFromAny(step.Payload)
	if err != nil {
		return fmt.Errorf("steps[%d]: failed to convert payload: %w", i, err)
	}

	appended, err := l.Append(ctx, step.Entity, commit.Proposed{
		Type:       commit.Type(step.Type),
		AuthorRef:  step.Author,
		Payload:    payload,
		CausalRefs: step.CausalRefs,
	})

	if err != nil {
		refusal, ok := log.RefusalFrom(err)
		if !ok {
			return fmt.Errorf("steps[%d]: append failed: %w", i, err)
		}
		result.AddRefusalTrace(step.Entity, step.Type, refusal.Reason, refusal.Message)
		if step.Expect.Refusal == "" {
			result.AddError(fmt.Sprintf("steps[%d]: expected index %d, got refusal %s", i, step.Expect.Index, refusal.Reason))
		} else if refusal.Reason != step.Expect.Refusal {
			result.AddError(fmt.Sprintf("steps[%d]: expected refusal %s, got %s", i, step.Expect.Refusal, refusal.Reason))
		}
		return nil
	}

	result.AddCommitTrace(step.Entity, step.Type, appended.Ref, appended.Index, step.Payload)
	if step.Expect.Refusal != "" {
		result.AddError(fmt.Sprintf("steps[%d]: expected refusal %s, but commit landed at index %d", i, step.Expect.Refusal, appended.Index))
	} else if appended.Index != step.Expect.Index {
		result.AddError(fmt.Sprintf("steps[%d]: expected index %d, got %d", i, step.Expect.Index, appended.Index))
	}
	return nil
}

// evaluateAssertions checks every assertion against the final log state.
func evaluateAssertions(l *log.Log, assertions []Assertion, result *Result) {
	for i, a := range assertions {
		entity, err := l.Entity(a.Entity)
		if err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
			continue
		}

		switch a.Type {
		case AssertHeadIndex:
			if entity.HeadIndex != a.Index {
				result.AddError(fmt.Sprintf("assertions[%d]: head_index: expected %d, got %d", i, a.Index, entity.HeadIndex))
			}
		case AssertLogCount:
			if count := l.CommitCount(a.Entity); count != a.Count {
				result.AddError(fmt.Sprintf("assertions[%d]: log_count: expected %d, got %d", i, a.Count, count))
			}
		case AssertState:
			history, err := l.Range(a.Entity, 0, 0)
			if err != nil {
				result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
				continue
			}
			state := workzone.Project(history)
			checkStateField(i, a, "zoneId", state.ZoneID, result)
			checkStateField(i, a, "commitState", state.CommitState, result)
			checkStateField(i, a, "boundaryReason", state.BoundaryReason, result)
			checkStateField(i, a, "title", state.Title, result)
			checkStateField(i, a, "currentTask", state.CurrentTask, result)
		}
	}
}

func checkStateField(i int, a Assertion, field, actual string, result *Result) {
	expected, ok := a.Expect[field]
	if !ok {
		return
	}
	if actual != expected {
		result.AddError(fmt.Sprintf("assertions[%d]: state.%s: expected %q, got %q", i, field, expected, actual))
	}
}
