package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	product := &models.Product{SKU: "VNL-BLK", Name: "Black vinyl", Unit: "m", StockQuantity: 10}
	require.NoError(t, store.Products().Create(ctx, product))

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(ctx context.Context, tx repository.Store) error {
		require.NoError(t, tx.Products().Decrement(ctx, product.ID, 4))
		require.NoError(t, tx.Orders().Create(ctx, &models.Order{OrderNumber: "ORD-1", CustomerName: "Ana"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Products().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.StockQuantity)

	orders, err := store.Orders().List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestTransactionRetriesStaleWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	attempts := 0

	err := store.Transaction(ctx, func(ctx context.Context, tx repository.Store) error {
		attempts++
		if attempts < 3 {
			return repository.ErrStaleWrite
		}
		return nil
	}, repository.WithTxAttempts(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	product := &models.Product{SKU: "LAM-01", Name: "Laminate", Unit: "m", StockQuantity: 2}
	require.NoError(t, store.Products().Create(ctx, product))

	assert.ErrorIs(t, store.Products().Decrement(ctx, product.ID, 3), repository.ErrStockGuard)
	require.NoError(t, store.Products().Decrement(ctx, product.ID, 2))

	got, _ := store.Products().GetByID(ctx, product.ID)
	assert.Equal(t, 0, got.StockQuantity)
}

func TestUpdateDerivedChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	order := &models.Order{OrderNumber: "ORD-7", CustomerName: "Ben"}
	require.NoError(t, store.Orders().Create(ctx, order))

	first, _ := store.Orders().GetByID(ctx, order.ID)
	second, _ := store.Orders().GetByID(ctx, order.ID)

	first.Status = models.OrderInProgress
	require.NoError(t, store.Orders().UpdateDerived(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Status = models.OrderCompleted
	assert.ErrorIs(t, store.Orders().UpdateDerived(ctx, second), repository.ErrStaleWrite)

	got, _ := store.Orders().GetByID(ctx, order.ID)
	assert.Equal(t, models.OrderInProgress, got.Status)
}

func TestClaimedSlotIsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sched := store.Scheduling()

	first := &models.ScheduledWorkUnit{DailyScheduleID: 1, TimeSlotDefinitionID: 2}
	first.SetState(models.BookedFor(10))
	require.NoError(t, sched.CreateWorkUnit(ctx, first))

	second := &models.ScheduledWorkUnit{DailyScheduleID: 1, TimeSlotDefinitionID: 2}
	second.SetState(models.BookedFor(11))
	assert.ErrorIs(t, sched.CreateWorkUnit(ctx, second), repository.ErrDuplicate)

	open := &models.ScheduledWorkUnit{DailyScheduleID: 1, TimeSlotDefinitionID: 2}
	open.SetState(models.Available())
	require.NoError(t, sched.CreateWorkUnit(ctx, open))

	claimed, err := sched.FindClaimingUnit(ctx, 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claimed.ID)

	_, err = sched.FindClaimingUnit(ctx, 1, 2, first.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLatestHistoryBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.StageHistory().Append(ctx, &models.OrderStageHistory{OrderID: 1, Stage: models.StageSurvey, ChangedAt: at}))
	require.NoError(t, store.StageHistory().Append(ctx, &models.OrderStageHistory{OrderID: 1, Stage: models.StageDesign, ChangedAt: at}))
	require.NoError(t, store.StageHistory().Append(ctx, &models.OrderStageHistory{OrderID: 2, Stage: models.StageCompleted, ChangedAt: at.Add(time.Hour)}))

	latest, err := store.StageHistory().Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StageDesign, latest.Stage)

	_, err = store.StageHistory().Latest(ctx, 3)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHasAvailableUnitsFrom(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sched := store.Scheduling()
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	schedule := &models.TechnicianDailySchedule{TechnicianID: 1, WorkDate: day}
	require.NoError(t, sched.CreateDailySchedule(ctx, schedule))
	unit := &models.ScheduledWorkUnit{DailyScheduleID: schedule.ID, TimeSlotDefinitionID: 1}
	unit.SetState(models.Available())
	require.NoError(t, sched.CreateWorkUnit(ctx, unit))

	ok, err := sched.HasAvailableUnitsFrom(ctx, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sched.HasAvailableUnitsFrom(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}
