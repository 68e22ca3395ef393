package services

import (
	"context"
	"fmt"
	"time"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"github.com/shopspring/decimal"
)

// StatusInputs is everything the derived order status depends on.
type StatusInputs struct {
	RequiredWorkUnits  decimal.Decimal
	CompletedWorkUnits decimal.Decimal
	BookedWorkUnits    decimal.Decimal
	// OpenSlotsAvailable is true when the pool holds an available unit on a schedule
	// dated today or later.
	OpenSlotsAvailable bool
}

// DeriveOrderStatus applies the status rules in priority order.
func DeriveOrderStatus(in StatusInputs) models.OrderStatus {
	switch {
	case !in.RequiredWorkUnits.IsPositive():
		return models.OrderReadyForPayment
	// Slots deliver whole slot-sized amounts, so finished work usually overshoots the requirement.
	case in.CompletedWorkUnits.GreaterThanOrEqual(in.RequiredWorkUnits):
		return models.OrderCompleted
	case in.BookedWorkUnits.IsPositive() || in.CompletedWorkUnits.IsPositive():
		return models.OrderInProgress
	case in.OpenSlotsAvailable:
		return models.OrderAssigned
	default:
		return models.OrderNew
	}
}

func collectStatusInputs(ctx context.Context, tx repository.Store, orderID uint, today time.Time) (StatusInputs, error) {
	var in StatusInputs

	items, err := tx.LineItems().GetByOrderID(ctx, orderID)
	if err != nil {
		return in, fmt.Errorf("failed to load line items of order %d: %w", orderID, err)
	}
	in.RequiredWorkUnits, err = NewBillOfMaterialsResolver(tx.Catalog()).RequiredWorkUnits(ctx, items)
	if err != nil {
		return in, err
	}

	units, err := tx.Scheduling().ListWorkUnits(ctx, repository.WorkUnitFilter{OrderID: &orderID})
	if err != nil {
		return in, fmt.Errorf("failed to load work units of order %d: %w", orderID, err)
	}
	slotIDs := make([]uint, 0, len(units))
	for _, unit := range units {
		slotIDs = append(slotIDs, unit.TimeSlotDefinitionID)
	}
	slots, err := tx.Scheduling().GetSlots(ctx, slotIDs)
	if err != nil {
		return in, fmt.Errorf("failed to load time slots: %w", err)
	}

	in.CompletedWorkUnits = decimal.Zero
	in.BookedWorkUnits = decimal.Zero
	for _, unit := range units {
		slot, ok := slots[unit.TimeSlotDefinitionID]
		if !ok {
			return in, notFound("time slot", unit.TimeSlotDefinitionID)
		}
		switch unit.Status {
		case models.WorkUnitCompleted:
			in.CompletedWorkUnits = in.CompletedWorkUnits.Add(slot.Units())
		case models.WorkUnitBooked:
			in.BookedWorkUnits = in.BookedWorkUnits.Add(slot.Units())
		}
	}

	in.OpenSlotsAvailable, err = tx.Scheduling().HasAvailableUnitsFrom(ctx, startOfDay(today))
	if err != nil {
		return in, fmt.Errorf("failed to look up open slots: %w", err)
	}
	return in, nil
}

// recomputeOrderStatus derives the order's status from current state and writes it only when
// it changed. The returned order reflects what is stored after the call.
func recomputeOrderStatus(ctx context.Context, tx repository.Store, orderID uint, now time.Time) (*models.Order, bool, error) {
	order, err := tx.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, false, lookupErr(err, "order", orderID)
	}
	in, err := collectStatusInputs(ctx, tx, orderID, now)
	if err != nil {
		return nil, false, err
	}

	status := DeriveOrderStatus(in)
	if status == order.Status {
		return order, false, nil
	}
	order.Status = status
	if err := tx.Orders().UpdateDerived(ctx, order); err != nil {
		return nil, false, fmt.Errorf("failed to update status of order %d: %w", orderID, err)
	}
	return order, true, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
