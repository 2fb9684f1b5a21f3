package project

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycivic/filament/internal/commit"
)

func unitCommit(index uint64, commitType commit.Type, payload commit.Object) commit.Commit {
	return commit.Commit{
		Ref:      commit.Ref("unit-7", index),
		EntityID: "unit-7",
		Index:    index,
		Type:     commitType,
		Payload:  payload,
	}
}

func TestReduceUnitEmptyHistoryIsIdle(t *testing.T) {
	s := ReduceUnit(nil)
	assert.Equal(t, UnitIdle, s.Status)
	assert.Empty(t, s.AttachedFilament)
}

func TestReduceUnitLatestWins(t *testing.T) {
	s := ReduceUnit([]commit.Commit{
		unitCommit(1, TypeMoveTo, commit.Object{"target": commit.String("sector-4")}),
		unitCommit(2, TypeMoveTo, commit.Object{"target": commit.String("sector-9")}),
	})

	assert.Equal(t, UnitMoving, s.Status)
	assert.Equal(t, "sector-9", s.Destination)
}

func TestReduceUnitAttachAndTask(t *testing.T) {
	s := ReduceUnit([]commit.Commit{
		unitCommit(1, TypeAttach, commit.Object{"target": commit.String("filament-12")}),
		unitCommit(2, TypeTaskAssign, commit.Object{"taskId": commit.String("task-3")}),
	})

	assert.Equal(t, UnitWorking, s.Status)
	assert.Equal(t, "filament-12", s.AttachedFilament)
	assert.Equal(t, "task-3", s.CurrentTask)
}

func TestReduceUnitDetachClears(t *testing.T) {
	s := ReduceUnit([]commit.Commit{
		unitCommit(1, TypeAttach, commit.Object{"target": commit.String("filament-12")}),
		unitCommit(2, TypeTaskAssign, commit.Object{"taskId": commit.String("task-3")}),
		unitCommit(3, TypeDetach, commit.Object{}),
	})

	assert.Equal(t, UnitIdle, s.Status)
	assert.Empty(t, s.AttachedFilament)
	assert.Empty(t, s.CurrentTask)
}

func TestReduceUnitUnknownIntentIsNoOp(t *testing.T) {
	s := ReduceUnit([]commit.Commit{
		unitCommit(1, TypeMoveTo, commit.Object{"target": commit.String("sector-4")}),
		unitCommit(2, "SELF_DESTRUCT", commit.Object{}),
	})

	assert.Equal(t, UnitMoving, s.Status)
	assert.Equal(t, "sector-4", s.Destination)
}

func TestReduceUnitToPrefix(t *testing.T) {
	history := []commit.Commit{
		unitCommit(1, TypeMoveTo, commit.Object{"target": commit.String("sector-4")}),
		unitCommit(2, TypeAttach, commit.Object{"target": commit.String("filament-12")}),
		unitCommit(3, TypeDetach, commit.Object{}),
	}

	assert.Equal(t, UnitMoving, ReduceUnitTo(history, 1).Status)
	assert.Equal(t, UnitWorking, ReduceUnitTo(history, 2).Status)
	assert.Equal(t, UnitIdle, ReduceUnitTo(history, 0).Status)
}

func TestReduceUnitIsDeterministic(t *testing.T) {
	history := []commit.Commit{
		unitCommit(1, TypeMoveTo, commit.Object{"target": commit.String("sector-4")}),
		unitCommit(2, TypeAttach, commit.Object{"target": commit.String("filament-12")}),
		unitCommit(3, TypeTaskAssign, commit.Object{"taskId": commit.String("task-3")}),
	}

	first := ReduceUnit(history)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ReduceUnit(history))
	}
}
