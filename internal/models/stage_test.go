package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageCatalogOrder(t *testing.T) {
	stages := Stages()
	assert.Equal(t, StageSurvey, FirstStage())
	assert.Equal(t, StageCompleted, stages[len(stages)-1].Stage)

	for i := 1; i < len(stages); i++ {
		assert.Greater(t, stages[i].CompletionPercentage, stages[i-1].CompletionPercentage, "weight of %s", stages[i].Stage)
		next, ok := stages[i-1].Stage.Next()
		assert.True(t, ok)
		assert.Equal(t, stages[i].Stage, next)
	}
}

func TestStagesReturnsCopy(t *testing.T) {
	stages := Stages()
	stages[0].Stage = "tampered"
	assert.Equal(t, StageSurvey, FirstStage())
}

func TestCanTransition(t *testing.T) {
	survey := StageSurvey
	design := StageDesign
	done := StageCompleted

	assert.True(t, CanTransition(nil, StageSurvey))
	assert.False(t, CanTransition(nil, StageDesign))
	assert.True(t, CanTransition(&survey, StageDesign))
	assert.False(t, CanTransition(&survey, StageProduction), "skipping a stage")
	assert.False(t, CanTransition(&design, StageSurvey), "going back")
	assert.False(t, CanTransition(&design, StageDesign), "staying put")
	assert.False(t, CanTransition(&done, StageSurvey), "past terminal")
}

func TestTerminalStageHasNoSuccessor(t *testing.T) {
	assert.True(t, StageCompleted.IsTerminal())
	_, ok := StageCompleted.Next()
	assert.False(t, ok)

	_, ok = OrderStage("unknown").Next()
	assert.False(t, ok)
	assert.False(t, OrderStage("unknown").Valid())
}
