package workzone

import (
	"fmt"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
	"github.com/relaycivic/filament/internal/registry"
)

// Validator gates proposed commits for work-zone entities. It is a pure
// predicate: it folds the entity's history into a State, checks the
// proposed commit against it, and returns a structured refusal or nil.
// It never mutates the log.
type Validator struct {
	schemas *SchemaSet
}

// NewValidator compiles the payload schemas and returns the validator.
func NewValidator() (*Validator, error) {
	schemas, err := LoadSchemas()
	if err != nil {
		return nil, err
	}
	return &Validator{schemas: schemas}, nil
}

// Schemas exposes the compiled schema set (used by the CLI schema command).
func (v *Validator) Schemas() *SchemaSet {
	return v.schemas
}

// Validate implements log.Validator. Check order is fixed: structural
// validation first (unknown type or malformed payload is InvalidCommit
// before any state-machine rule runs), then zone id shape, then zone
// pinning, then the boundary gate.
func (v *Validator) Validate(entity registry.Entity, history []commit.Commit, proposed commit.Commit) *log.Refusal {
	if entity.Type != EntityType {
		return nil
	}

	if !v.schemas.Known(proposed.Type) {
		return &log.Refusal{
			Reason:  ReasonInvalidCommit,
			Message: fmt.Sprintf("unknown commit type %q", proposed.Type),
			Context: map[string]string{"type": string(proposed.Type)},
		}
	}
	if err := v.schemas.Check(proposed.Type, proposed.Payload); err != nil {
		return &log.Refusal{
			Reason:  ReasonInvalidCommit,
			Message: fmt.Sprintf("malformed %s payload", proposed.Type),
			Context: map[string]string{
				"type":  string(proposed.Type),
				"cause": err.Error(),
			},
		}
	}

	state := Project(history)

	if proposed.Type == TypeDefine {
		zoneID, _ := proposed.StringField("zoneId")
		if !ValidZoneID(zoneID) {
			return &log.Refusal{
				Reason:  ReasonInvalidZoneID,
				Message: "zone id must match zone.<company>.<dept>.<project>",
				Context: map[string]string{"zoneId": zoneID},
			}
		}
	}

	// Zone identity is fixed after first declaration: any later commit
	// carrying a different zoneId is refused.
	if state.ZoneID != "" {
		if zoneID, ok := proposed.StringField("zoneId"); ok && zoneID != state.ZoneID {
			return &log.Refusal{
				Reason:  ReasonZoneMismatch,
				Message: "commit zone id differs from the entity's declared zone",
				Context: map[string]string{
					"declared": state.ZoneID,
					"proposed": zoneID,
				},
			}
		}
	}

	if proposed.Type == TypeStateSet {
		target, _ := proposed.StringField("state")
		if target == StateCommit || target == StateRevert {
			reason, ok := proposed.StringField("boundaryReason")
			if !ok {
				reason = state.BoundaryReason
			}
			if !ValidBoundaryReason(reason) {
				return &log.Refusal{
					Reason:  ReasonBoundaryRequired,
					Message: fmt.Sprintf("transition to %s requires a boundary reason", target),
					Context: map[string]string{
						"state":     target,
						"inherited": state.BoundaryReason,
					},
				}
			}
		}
	}

	return nil
}
