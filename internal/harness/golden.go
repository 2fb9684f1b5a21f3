package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/relaycivic/filament/internal/commit"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Serialized with canonical JSON so golden comparison is deterministic.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// toCanonicalMap converts the snapshot to a map[string]any tree that
// commit.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type":        event.Type,
			"entity":      event.Entity,
			"commit_type": event.CommitType,
		}
		if event.Index != 0 {
			eventMap["index"] = event.Index
		}
		if event.Ref != "" {
			eventMap["ref"] = event.Ref
		}
		if event.Payload != nil {
			eventMap["payload"] = event.Payload
		}
		if event.RefusalReason != "" {
			eventMap["refusal_reason"] = event.RefusalReason
		}
		if event.RefusalMsg != "" {
			eventMap["refusal_msg"] = event.RefusalMsg
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario and compares the trace against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Trace mismatch fails the
// test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
	}

	traceJSON, err := commit.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
