// Package workzone implements the work-zone commit domain: the
// DRAFT/HOLD/PROPOSE/COMMIT state machine, the boundary-reason gate for
// materiality-crossing transitions, zone identity pinning, and structural
// payload validation against embedded CUE schemas.
package workzone

import (
	"regexp"

	"github.com/relaycivic/filament/internal/commit"
)

// EntityType is the registry type for work-zone entities. The validator
// passes commits for other entity types through untouched.
const EntityType = "workzone"

// Commit types understood by the work-zone domain.
const (
	// TypeDefine declares the zone identity. The first valid define pins
	// the entity's zoneId for life.
	TypeDefine commit.Type = "WORKZONE_DEFINE"
	// TypeStateSet transitions the zone's commit state.
	TypeStateSet commit.Type = "COMMIT_STATE_SET"
	// TypeBoundaryDeclared records a materiality boundary reason that
	// later COMMIT/REVERT transitions may inherit.
	TypeBoundaryDeclared commit.Type = "MATERIAL_BOUNDARY_DECLARED"
	// TypeTaskAssign assigns a task within the zone.
	TypeTaskAssign commit.Type = "TASK_ASSIGN"
)

// Commit states. REVERT is reachable from any state; the others form the
// nominal progression, but transitions are not required to be adjacent.
// The gate for COMMIT and REVERT is the boundary reason, not the path.
const (
	StateDraft   = "DRAFT"
	StateHold    = "HOLD"
	StatePropose = "PROPOSE"
	StateCommit  = "COMMIT"
	StateRevert  = "REVERT"
)

// Boundary reasons. A COMMIT or REVERT transition must carry one of these,
// either on the commit itself or inherited from the entity's last
// declared reason.
const (
	BoundaryTime       = "time"
	BoundaryRisk       = "risk"
	BoundaryDependency = "dependency"
	BoundaryVisibility = "visibility"
)

// Refusal reason codes.
const (
	ReasonInvalidCommit    = "InvalidCommit"
	ReasonInvalidZoneID    = "InvalidZoneId"
	ReasonZoneMismatch     = "ZoneMismatch"
	ReasonBoundaryRequired = "BoundaryRequired"
)

// zoneIDPattern matches zone.<company>.<dept>.<project> with lowercase
// alphanumeric/hyphen segments.
var zoneIDPattern = regexp.MustCompile(`^zone\.[a-z0-9-]+\.[a-z0-9-]+\.[a-z0-9-]+$`)

// ValidZoneID reports whether s is a well-formed zone id.
func ValidZoneID(s string) bool {
	return zoneIDPattern.MatchString(s)
}

// ValidBoundaryReason reports whether s is one of the fixed reasons.
func ValidBoundaryReason(s string) bool {
	switch s {
	case BoundaryTime, BoundaryRisk, BoundaryDependency, BoundaryVisibility:
		return true
	}
	return false
}

// State is the materialized work-zone view: a pure fold over the entity's
// commit sequence.
type State struct {
	// ZoneID is the pinned zone identity, empty until the first define.
	ZoneID string
	// CommitState is the current state, empty before the first define.
	CommitState string
	// BoundaryReason is the last declared reason, empty if none yet.
	BoundaryReason string
	// Title is the zone title from the define commit, if any.
	Title string
	// CurrentTask is the most recently assigned task id.
	CurrentTask string
}

// Project folds the full history into a State.
func Project(history []commit.Commit) State {
	return ProjectTo(history, 0)
}

// ProjectTo folds commits with Index <= maxIndex (0 means all). Replaying
// the same prefix twice produces identical state.
func ProjectTo(history []commit.Commit, maxIndex uint64) State {
	var s State
	for _, c := range history {
		if maxIndex > 0 && c.Index > maxIndex {
			break
		}
		s = apply(s, c)
	}
	return s
}

// apply advances the state by one commit. Commits reach this point only
// after validation, so unknown types are skipped rather than rejected.
func apply(s State, c commit.Commit) State {
	// Any validated commit carrying a boundary reason refreshes the
	// entity's declared reason.
	if reason, ok := c.StringField("boundaryReason"); ok && ValidBoundaryReason(reason) {
		s.BoundaryReason = reason
	}

	switch c.Type {
	case TypeDefine:
		if zoneID, ok := c.StringField("zoneId"); ok {
			s.ZoneID = zoneID
		}
		if title, ok := c.StringField("title"); ok {
			s.Title = title
		}
		if s.CommitState == "" {
			s.CommitState = StateDraft
		}
	case TypeStateSet:
		if state, ok := c.StringField("state"); ok {
			s.CommitState = state
		}
	case TypeTaskAssign:
		if taskID, ok := c.StringField("taskId"); ok {
			s.CurrentTask = taskID
		}
	}
	return s
}
