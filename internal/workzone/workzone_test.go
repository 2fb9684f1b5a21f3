package workzone

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycivic/filament/internal/commit"
)

func zoneCommit(index uint64, commitType commit.Type, payload commit.Object) commit.Commit {
	return commit.Commit{
		Ref:      commit.Ref("zone.acme.eng.relay", index),
		EntityID: "zone.acme.eng.relay",
		Index:    index,
		Type:     commitType,
		Payload:  payload,
	}
}

func TestValidZoneID(t *testing.T) {
	assert.True(t, ValidZoneID("zone.acme.eng.relay"))
	assert.True(t, ValidZoneID("zone.a-1.b-2.c-3"))

	assert.False(t, ValidZoneID(""))
	assert.False(t, ValidZoneID("zone.acme.eng"))
	assert.False(t, ValidZoneID("zone.acme.eng.relay.extra"))
	assert.False(t, ValidZoneID("zone.Acme.eng.relay"))
	assert.False(t, ValidZoneID("area.acme.eng.relay"))
	assert.False(t, ValidZoneID("zone.acme..relay"))
}

func TestValidBoundaryReason(t *testing.T) {
	for _, reason := range []string{BoundaryTime, BoundaryRisk, BoundaryDependency, BoundaryVisibility} {
		assert.True(t, ValidBoundaryReason(reason), reason)
	}
	assert.False(t, ValidBoundaryReason(""))
	assert.False(t, ValidBoundaryReason("urgency"))
	assert.False(t, ValidBoundaryReason("Risk"))
}

func TestProjectEmptyHistory(t *testing.T) {
	s := Project(nil)
	assert.Empty(t, s.ZoneID)
	assert.Empty(t, s.CommitState)
}

func TestProjectDefineSetsIdentityAndDraft(t *testing.T) {
	s := Project([]commit.Commit{
		zoneCommit(1, TypeDefine, commit.Object{
			"zoneId": commit.String("zone.acme.eng.relay"),
			"title":  commit.String("Relay pilot"),
		}),
	})

	assert.Equal(t, "zone.acme.eng.relay", s.ZoneID)
	assert.Equal(t, "Relay pilot", s.Title)
	assert.Equal(t, StateDraft, s.CommitState)
}

func TestProjectStateAndBoundaryAndTask(t *testing.T) {
	s := Project([]commit.Commit{
		zoneCommit(1, TypeDefine, commit.Object{"zoneId": commit.String("zone.acme.eng.relay")}),
		zoneCommit(2, TypeBoundaryDeclared, commit.Object{"boundaryReason": commit.String(BoundaryRisk)}),
		zoneCommit(3, TypeStateSet, commit.Object{"state": commit.String(StateCommit)}),
		zoneCommit(4, TypeTaskAssign, commit.Object{
			"taskId":      commit.String("task-7"),
			"assigneeRef": commit.String("author:kim"),
		}),
	})

	assert.Equal(t, StateCommit, s.CommitState)
	assert.Equal(t, BoundaryRisk, s.BoundaryReason)
	assert.Equal(t, "task-7", s.CurrentTask)
}

func TestProjectBoundaryRefreshedByAnyCommit(t *testing.T) {
	// A state-set carrying its own boundary reason updates the declared
	// reason for later transitions.
	s := Project([]commit.Commit{
		zoneCommit(1, TypeDefine, commit.Object{"zoneId": commit.String("zone.acme.eng.relay")}),
		zoneCommit(2, TypeStateSet, commit.Object{
			"state":          commit.String(StateCommit),
			"boundaryReason": commit.String(BoundaryTime),
		}),
	})

	assert.Equal(t, BoundaryTime, s.BoundaryReason)
}

func TestProjectToPrefix(t *testing.T) {
	history := []commit.Commit{
		zoneCommit(1, TypeDefine, commit.Object{"zoneId": commit.String("zone.acme.eng.relay")}),
		zoneCommit(2, TypeStateSet, commit.Object{"state": commit.String(StateHold)}),
		zoneCommit(3, TypeStateSet, commit.Object{"state": commit.String(StatePropose)}),
	}

	assert.Equal(t, StateDraft, ProjectTo(history, 1).CommitState)
	assert.Equal(t, StateHold, ProjectTo(history, 2).CommitState)
	assert.Equal(t, StatePropose, ProjectTo(history, 0).CommitState)
}

func TestProjectIsDeterministic(t *testing.T) {
	history := []commit.Commit{
		zoneCommit(1, TypeDefine, commit.Object{"zoneId": commit.String("zone.acme.eng.relay")}),
		zoneCommit(2, TypeBoundaryDeclared, commit.Object{"boundaryReason": commit.String(BoundaryRisk)}),
		zoneCommit(3, TypeStateSet, commit.Object{"state": commit.String(StateCommit)}),
	}

	first := Project(history)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Project(history))
	}
}

func TestProjectSkipsUnknownTypes(t *testing.T) {
	s := Project([]commit.Commit{
		zoneCommit(1, TypeDefine, commit.Object{"zoneId": commit.String("zone.acme.eng.relay")}),
		zoneCommit(2, "SOMETHING_ELSE", commit.Object{"state": commit.String(StateCommit)}),
	})

	assert.Equal(t, StateDraft, s.CommitState)
}
