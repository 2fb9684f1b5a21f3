// Package project holds the projectors: pure, deterministic folds from an
// ordered commit sequence to materialized state. Projectors never write;
// replaying the same prefix twice yields deep-equal results.
package project

import (
	"github.com/relaycivic/filament/internal/commit"
)

// Unit intent commit types.
const (
	TypeMoveTo     commit.Type = "MOVE_TO"
	TypeAttach     commit.Type = "ATTACH"
	TypeDetach     commit.Type = "DETACH"
	TypeTaskAssign commit.Type = "TASK_ASSIGN"
)

// UnitStatus is the unit's latest-wins activity state.
type UnitStatus string

const (
	UnitIdle    UnitStatus = "Idle"
	UnitMoving  UnitStatus = "Moving"
	UnitWorking UnitStatus = "Working"
)

// UnitState is the materialized view of a unit stream.
type UnitState struct {
	Status           UnitStatus
	AttachedFilament string
	CurrentTask      string
	// Destination is the latest MOVE_TO target, kept for display.
	Destination string
}

// ReduceUnit folds a full unit history into its current state.
func ReduceUnit(history []commit.Commit) UnitState {
	return ReduceUnitTo(history, 0)
}

// ReduceUnitTo folds commits with Index <= maxIndex (0 means all).
//
// Unknown intents are deliberate no-ops, not errors: unit streams predate
// full validation and old logs may contain types this projector has never
// heard of. The work-zone validator takes the opposite, strict stance;
// both policies are pinned by tests.
func ReduceUnitTo(history []commit.Commit, maxIndex uint64) UnitState {
	state := UnitState{Status: UnitIdle}
	for _, c := range history {
		if maxIndex > 0 && c.Index > maxIndex {
			break
		}
		state = applyUnit(state, c)
	}
	return state
}

func applyUnit(state UnitState, c commit.Commit) UnitState {
	switch c.Type {
	case TypeMoveTo:
		state.Status = UnitMoving
		if dest, ok := c.StringField("target"); ok {
			state.Destination = dest
		}
	case TypeAttach:
		state.Status = UnitWorking
		if target, ok := c.StringField("target"); ok {
			state.AttachedFilament = target
		}
	case TypeDetach:
		state.Status = UnitIdle
		state.AttachedFilament = ""
		state.CurrentTask = ""
	case TypeTaskAssign:
		if taskID, ok := c.StringField("taskId"); ok {
			state.CurrentTask = taskID
		}
	}
	return state
}
