package services

import (
	"errors"
	"testing"

	"decal_manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionToNextStageWalksTheCatalog(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)
	catalog := models.Stages()

	for _, def := range catalog {
		entry, err := f.stages.TransitionToNextStage(f.ctx, order.ID, nil, "")
		require.NoError(t, err)
		assert.Equal(t, def.Stage, entry.Stage)
		assert.Equal(t, testNow, entry.ChangedAt)
	}

	_, err := f.stages.TransitionToNextStage(f.ctx, order.ID, nil, "")
	require.ErrorIs(t, err, ErrTerminalStage)
	require.ErrorIs(t, err, ErrConflict)

	history, err := f.stages.ListHistory(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, len(catalog))
	for i, entry := range history {
		assert.Equal(t, catalog[i].Stage, entry.Stage)
	}

	stored := f.reload(t, order.ID)
	require.NotNil(t, stored.CurrentStage)
	assert.Equal(t, models.StageCompleted, *stored.CurrentStage)
	assert.Len(t, f.notifier.stages, len(catalog))
}

func TestCanTransitionToStage(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)

	ok, err := f.stages.CanTransitionToStage(f.ctx, order.ID, models.FirstStage())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.stages.CanTransitionToStage(f.ctx, order.ID, models.StageDesign)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.stages.CreateHistoryEntry(f.ctx, order.ID, models.StageInstallation, nil, "skipped ahead by hand")
	require.NoError(t, err)

	ok, err = f.stages.CanTransitionToStage(f.ctx, order.ID, models.StageQualityCheck)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.stages.CanTransitionToStage(f.ctx, order.ID, models.StageCompleted)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.stages.CanTransitionToStage(f.ctx, order.ID, models.OrderStage("painting"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.stages.CanTransitionToStage(f.ctx, 9999, models.StageSurvey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateHistoryEntryValidatesInput(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)

	_, err := f.stages.CreateHistoryEntry(f.ctx, order.ID, models.OrderStage("painting"), nil, "")
	assert.ErrorIs(t, err, ErrValidation)

	missingActor := uint(4242)
	_, err = f.stages.CreateHistoryEntry(f.ctx, order.ID, models.StageSurvey, &missingActor, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "employee", notFound.Entity)

	_, err = f.stages.CreateHistoryEntry(f.ctx, 9999, models.StageSurvey, nil, "")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := f.stages.ListHistory(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetCurrentStage(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)

	current, err := f.stages.GetCurrentStage(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, current)

	manager, err := f.employees.CreateEmployee(f.ctx, "Rina", "", models.RoleManager)
	require.NoError(t, err)
	_, err = f.stages.TransitionToNextStage(f.ctx, order.ID, &manager.ID, "  measured  ")
	require.NoError(t, err)
	assert.Equal(t, string(models.StageSurvey), f.cache.stages[order.ID])

	current, err = f.stages.GetCurrentStage(f.ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, models.StageSurvey, *current)

	// A broken cache falls back to history.
	f.cache.err = errors.New("connection refused")
	current, err = f.stages.GetCurrentStage(f.ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, models.StageSurvey, *current)

	history, err := f.stages.ListHistory(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "measured", history[0].Notes)
	require.NotNil(t, history[0].ActorID)
	assert.Equal(t, manager.ID, *history[0].ActorID)
}

func TestStageChangeSurvivesCacheFailure(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)
	f.cache.err = errors.New("connection refused")

	entry, err := f.stages.TransitionToNextStage(f.ctx, order.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageSurvey, entry.Stage)
}

func TestFailedCacheWriteEvictsPreviousStage(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)

	_, err := f.stages.TransitionToNextStage(f.ctx, order.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, string(models.StageSurvey), f.cache.stages[order.ID])

	f.cache.setErr = errors.New("READONLY You can't write against a read only replica")
	entry, err := f.stages.TransitionToNextStage(f.ctx, order.ID, nil, "")
	require.NoError(t, err)
	assert.NotContains(t, f.cache.stages, order.ID)

	current, err := f.stages.GetCurrentStage(f.ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, entry.Stage, *current)

	progress, err := f.stages.GetProgress(f.ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, progress.Stage)
	assert.Equal(t, entry.Stage, *progress.Stage)
}

func TestCorrectHistoryNotes(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)
	entry, err := f.stages.TransitionToNextStage(f.ctx, order.ID, nil, "typo")
	require.NoError(t, err)

	corrected, err := f.stages.CorrectHistoryNotes(f.ctx, entry.ID, "front bumper dented")
	require.NoError(t, err)
	assert.Equal(t, "front bumper dented", corrected.Notes)
	assert.Equal(t, entry.Stage, corrected.Stage)
	assert.Equal(t, entry.ChangedAt, corrected.ChangedAt)

	_, err = f.stages.CorrectHistoryNotes(f.ctx, 9999, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProgress(t *testing.T) {
	f := newFixture(t)
	order := f.order(t)

	progress, err := f.stages.GetProgress(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, progress.Stage)
	assert.Equal(t, 0, progress.CompletionPercentage)
	require.NotNil(t, progress.NextStage)
	assert.Equal(t, models.FirstStage(), *progress.NextStage)

	for i := 0; i < 2; i++ {
		_, err = f.stages.TransitionToNextStage(f.ctx, order.ID, nil, "")
		require.NoError(t, err)
	}
	progress, err = f.stages.GetProgress(f.ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, progress.Stage)
	assert.Equal(t, models.StageDesign, *progress.Stage)
	assert.Equal(t, 30, progress.CompletionPercentage)
	require.NotNil(t, progress.NextStage)
	assert.Equal(t, models.StageProduction, *progress.NextStage)
}
