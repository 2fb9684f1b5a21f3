package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios register entities, drive a sequence of append attempts through
// the real log with the work-zone validator installed, and assert on the
// resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entities lists entities to register before the steps run.
	Entities []EntityDecl `yaml:"entities"`

	// Steps contains the append attempts, each with expected outcome.
	Steps []Step `yaml:"steps"`

	// Assertions validate final heads, projected state, and log counts.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// EntityDecl registers one entity during scenario setup.
type EntityDecl struct {
	// ID is the entity id (for work zones, the zone id itself).
	ID string `yaml:"id"`

	// Type is the registry entity type (e.g. "workzone").
	Type string `yaml:"type"`

	// Scope is the hierarchical scope path.
	Scope string `yaml:"scope,omitempty"`

	// Author is recorded as the registering author ref.
	Author string `yaml:"author"`
}

// Step is one append attempt against a registered entity.
type Step struct {
	// Entity is the target entity id.
	Entity string `yaml:"entity"`

	// Type is the commit type (e.g. "COMMIT_STATE_SET").
	Type string `yaml:"type"`

	// Author is the author ref for the proposed commit.
	Author string `yaml:"author"`

	// Payload contains the commit payload. YAML numbers must be integers;
	// floats are rejected at conversion.
	Payload map[string]interface{} `yaml:"payload"`

	// CausalRefs optionally lists prior commit refs this commit depends on.
	CausalRefs []string `yaml:"causal_refs,omitempty"`

	// Expect specifies the expected outcome. Required: every step either
	// lands at a known index or is refused for a known reason.
	Expect ExpectClause `yaml:"expect"`
}

// ExpectClause specifies the expected append outcome. Exactly one of Index
// or Refusal must be set.
type ExpectClause struct {
	// Index is the expected commit index for an accepted append.
	Index uint64 `yaml:"index,omitempty"`

	// Refusal is the expected refusal reason code for a rejected append
	// (e.g. "BoundaryRequired").
	Refusal string `yaml:"refusal,omitempty"`
}

// Assertion validates final state after all steps ran.
type Assertion struct {
	// Type specifies the assertion type:
	// - "head_index": the entity's head index equals Index
	// - "state": the projected work-zone state matches Expect (subset)
	// - "log_count": the entity's commit count equals Count
	Type string `yaml:"type"`

	// Entity is the target entity id.
	Entity string `yaml:"entity"`

	// Index is the expected head index (head_index).
	Index uint64 `yaml:"index,omitempty"`

	// Expect contains expected projected state fields (state). Subset
	// match; keys are zoneId, commitState, boundaryReason, title,
	// currentTask.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Count is the expected number of commits (log_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertHeadIndex = "head_index"
	AssertState     = "state"
	AssertLogCount  = "log_count"
)

// LoadScenario reads and parses a scenario YAML file. Returns an error if
// the file is malformed, contains unknown fields (typos), or is missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Entities) == 0 {
		return fmt.Errorf("entities list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	declared := make(map[string]bool)
	for i, e := range s.Entities {
		if e.ID == "" {
			return fmt.Errorf("entities[%d]: id is required", i)
		}
		if e.Type == "" {
			return fmt.Errorf("entities[%d]: type is required", i)
		}
		if e.Author == "" {
			return fmt.Errorf("entities[%d]: author is required", i)
		}
		if declared[e.ID] {
			return fmt.Errorf("entities[%d]: duplicate entity id %q", i, e.ID)
		}
		declared[e.ID] = true
	}

	for i, step := range s.Steps {
		if step.Entity == "" {
			return fmt.Errorf("steps[%d]: entity is required", i)
		}
		if !declared[step.Entity] {
			return fmt.Errorf("steps[%d]: entity %q is not declared", i, step.Entity)
		}
		if step.Type == "" {
			return fmt.Errorf("steps[%d]: type is required", i)
		}
		if step.Author == "" {
			return fmt.Errorf("steps[%d]: author is required", i)
		}
		hasIndex := step.Expect.Index != 0
		hasRefusal := step.Expect.Refusal != ""
		if hasIndex == hasRefusal {
			return fmt.Errorf("steps[%d].expect: exactly one of index or refusal is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, declared); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, declared map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Entity == "" {
		return fmt.Errorf("assertions[%d]: entity is required", index)
	}
	if !declared[a.Entity] {
		return fmt.Errorf("assertions[%d]: entity %q is not declared", index, a.Entity)
	}

	switch a.Type {
	case AssertHeadIndex:
		if a.Index == 0 {
			return fmt.Errorf("assertions[%d]: index is required for head_index", index)
		}
	case AssertState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for state", index)
		}
	case AssertLogCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for log_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
