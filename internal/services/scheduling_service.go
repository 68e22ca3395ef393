package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WorkUnitRequest is the desired placement and state of a scheduled work unit.
type WorkUnitRequest struct {
	DailyScheduleID      uint
	TimeSlotDefinitionID uint
	OrderID              *uint
	Status               models.WorkUnitStatus
}

type SchedulingService interface {
	CreateTimeSlotDefinition(ctx context.Context, start, end string, workUnits decimal.Decimal) (*models.TimeSlotDefinition, error)
	ListTimeSlotDefinitions(ctx context.Context) ([]models.TimeSlotDefinition, error)
	CreateDailySchedule(ctx context.Context, technicianID uint, workDate time.Time) (*models.TechnicianDailySchedule, error)

	CreateScheduledWorkUnit(ctx context.Context, req WorkUnitRequest) (*models.ScheduledWorkUnit, error)
	UpdateScheduledWorkUnit(ctx context.Context, id uint, req WorkUnitRequest) (*models.ScheduledWorkUnit, error)
	DeleteScheduledWorkUnit(ctx context.Context, id uint) error
	GetScheduledWorkUnit(ctx context.Context, id uint) (*models.ScheduledWorkUnit, error)
	ListWorkUnits(ctx context.Context, filter repository.WorkUnitFilter) ([]models.ScheduledWorkUnit, error)

	// RecomputeOrderStatus re-derives and stores the order's status.
	RecomputeOrderStatus(ctx context.Context, orderID uint) (*models.Order, error)
}

type schedulingService struct {
	deps Deps
}

func NewSchedulingService(deps Deps) SchedulingService {
	return &schedulingService{deps: deps.withDefaults()}
}

func (s *schedulingService) CreateTimeSlotDefinition(ctx context.Context, start, end string, workUnits decimal.Decimal) (*models.TimeSlotDefinition, error) {
	slot := &models.TimeSlotDefinition{StartTime: start, EndTime: end, WorkUnits: workUnits}
	if _, _, err := slot.Window(); err != nil {
		return nil, validationf("%v", err)
	}
	if workUnits.IsNegative() {
		return nil, validationf("work units must not be negative, got %s", workUnits)
	}
	if err := storeErr(s.deps.Store.Scheduling().CreateSlot(ctx, slot)); err != nil {
		return nil, fmt.Errorf("failed to create time slot %s-%s: %w", start, end, err)
	}
	s.deps.log(ctx).Info("time slot created", zap.Uint("slot_id", slot.ID), zap.String("start", start), zap.String("end", end))
	return slot, nil
}

func (s *schedulingService) ListTimeSlotDefinitions(ctx context.Context) ([]models.TimeSlotDefinition, error) {
	return s.deps.Store.Scheduling().ListSlots(ctx)
}

func (s *schedulingService) CreateDailySchedule(ctx context.Context, technicianID uint, workDate time.Time) (*models.TechnicianDailySchedule, error) {
	if workDate.IsZero() {
		return nil, validationf("work date is required")
	}
	schedule := &models.TechnicianDailySchedule{TechnicianID: technicianID, WorkDate: startOfDay(workDate)}
	err := s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
		technician, err := tx.Employees().GetByID(ctx, technicianID)
		if err != nil {
			return lookupErr(err, "employee", technicianID)
		}
		if !technician.IsActive {
			return validationf("employee %d is not active", technicianID)
		}
		return tx.Scheduling().CreateDailySchedule(ctx, schedule)
	})
	if err != nil {
		return nil, err
	}
	s.deps.log(ctx).Info("daily schedule created",
		zap.Uint("schedule_id", schedule.ID),
		zap.Uint("technician_id", technicianID),
		zap.String("work_date", schedule.WorkDate.Format("2006-01-02")),
	)
	return schedule, nil
}

func (s *schedulingService) CreateScheduledWorkUnit(ctx context.Context, req WorkUnitRequest) (*models.ScheduledWorkUnit, error) {
	state, err := models.NewWorkUnitState(req.Status, req.OrderID)
	if err != nil {
		return nil, validationf("%v", err)
	}

	keys := []string{scheduleLockKey(req.DailyScheduleID)}
	if orderID, ok := state.OrderID(); ok {
		keys = append(keys, orderLockKey(orderID))
	}

	unit := &models.ScheduledWorkUnit{
		DailyScheduleID:      req.DailyScheduleID,
		TimeSlotDefinitionID: req.TimeSlotDefinitionID,
	}
	unit.SetState(state)

	var changed []*models.Order
	err = s.deps.withLocks(ctx, keys, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			changed = nil
			if err := checkPlacement(ctx, tx, req.DailyScheduleID, req.TimeSlotDefinitionID, state, 0, true); err != nil {
				return err
			}
			if err := tx.Scheduling().CreateWorkUnit(ctx, unit); err != nil {
				return claimErr(err, req)
			}
			var err error
			changed, err = s.recompute(ctx, tx, state)
			return err
		})
	})
	if err != nil {
		s.logRejected(ctx, "create", err, zap.Uint("schedule_id", req.DailyScheduleID), zap.Uint("slot_id", req.TimeSlotDefinitionID))
		return nil, err
	}

	s.deps.log(ctx).Info("work unit created", workUnitFields(unit)...)
	s.announce(ctx, changed)
	return unit, nil
}

func (s *schedulingService) UpdateScheduledWorkUnit(ctx context.Context, id uint, req WorkUnitRequest) (*models.ScheduledWorkUnit, error) {
	state, err := models.NewWorkUnitState(req.Status, req.OrderID)
	if err != nil {
		return nil, validationf("%v", err)
	}

	existing, err := s.deps.Store.Scheduling().GetWorkUnit(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "work unit", id)
	}
	previous := existing.State()

	keys := []string{scheduleLockKey(existing.DailyScheduleID), scheduleLockKey(req.DailyScheduleID)}
	if orderID, ok := previous.OrderID(); ok {
		keys = append(keys, orderLockKey(orderID))
	}
	if orderID, ok := state.OrderID(); ok {
		keys = append(keys, orderLockKey(orderID))
	}

	var unit *models.ScheduledWorkUnit
	var changed []*models.Order
	err = s.deps.withLocks(ctx, keys, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			changed = nil
			var err error
			unit, err = lockedWorkUnit(ctx, tx, existing)
			if err != nil {
				return err
			}
			moved := unit.DailyScheduleID != req.DailyScheduleID || unit.TimeSlotDefinitionID != req.TimeSlotDefinitionID
			if err := checkPlacement(ctx, tx, req.DailyScheduleID, req.TimeSlotDefinitionID, state, unit.ID, moved); err != nil {
				return err
			}

			unit.DailyScheduleID = req.DailyScheduleID
			unit.TimeSlotDefinitionID = req.TimeSlotDefinitionID
			unit.SetState(state)
			if err := tx.Scheduling().UpdateWorkUnit(ctx, unit); err != nil {
				return claimErr(err, req)
			}
			changed, err = s.recompute(ctx, tx, previous, state)
			return err
		})
	})
	if err != nil {
		s.logRejected(ctx, "update", err, zap.Uint("work_unit_id", id))
		return nil, err
	}

	s.deps.log(ctx).Info("work unit updated", workUnitFields(unit)...)
	s.announce(ctx, changed)
	return unit, nil
}

func (s *schedulingService) DeleteScheduledWorkUnit(ctx context.Context, id uint) error {
	existing, err := s.deps.Store.Scheduling().GetWorkUnit(ctx, id)
	if err != nil {
		return lookupErr(err, "work unit", id)
	}
	previous := existing.State()

	keys := []string{scheduleLockKey(existing.DailyScheduleID)}
	if orderID, ok := previous.OrderID(); ok {
		keys = append(keys, orderLockKey(orderID))
	}

	var changed []*models.Order
	err = s.deps.withLocks(ctx, keys, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			changed = nil
			unit, err := lockedWorkUnit(ctx, tx, existing)
			if err != nil {
				return err
			}
			if unit.Status == models.WorkUnitCompleted {
				return fmt.Errorf("%w: work unit %d", ErrWorkUnitCompleted, unit.ID)
			}
			if _, err := tx.Scheduling().GetDailyScheduleForUpdate(ctx, unit.DailyScheduleID); err != nil {
				return lookupErr(err, "daily schedule", unit.DailyScheduleID)
			}
			if err := tx.Scheduling().DeleteWorkUnit(ctx, unit.ID); err != nil {
				return lookupErr(err, "work unit", unit.ID)
			}
			changed, err = s.recompute(ctx, tx, previous)
			return err
		})
	})
	if err != nil {
		s.logRejected(ctx, "delete", err, zap.Uint("work_unit_id", id))
		return err
	}

	s.deps.log(ctx).Info("work unit deleted", workUnitFields(existing)...)
	s.announce(ctx, changed)
	return nil
}

func (s *schedulingService) GetScheduledWorkUnit(ctx context.Context, id uint) (*models.ScheduledWorkUnit, error) {
	unit, err := s.deps.Store.Scheduling().GetWorkUnit(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "work unit", id)
	}
	return unit, nil
}

func (s *schedulingService) ListWorkUnits(ctx context.Context, filter repository.WorkUnitFilter) ([]models.ScheduledWorkUnit, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationf("unknown work unit status %q", *filter.Status)
	}
	units, err := s.deps.Store.Scheduling().ListWorkUnits(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list work units: %w", err)
	}
	return units, nil
}

func (s *schedulingService) RecomputeOrderStatus(ctx context.Context, orderID uint) (*models.Order, error) {
	var order *models.Order
	var changed bool
	err := s.deps.withLocks(ctx, []string{orderLockKey(orderID)}, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			var err error
			order, changed, err = recomputeOrderStatus(ctx, tx, orderID, s.deps.now())
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.deps.log(ctx).Info("order status recomputed", zap.Uint("order_id", orderID), zap.String("status", string(order.Status)))
		s.announce(ctx, []*models.Order{order})
	}
	return order, nil
}

// recompute re-derives the status of every order referenced by the given states.
func (s *schedulingService) recompute(ctx context.Context, tx repository.Store, states ...models.WorkUnitState) ([]*models.Order, error) {
	seen := make(map[uint]bool, len(states))
	var changed []*models.Order
	for _, state := range states {
		orderID, ok := state.OrderID()
		if !ok || seen[orderID] {
			continue
		}
		seen[orderID] = true
		order, updated, err := recomputeOrderStatus(ctx, tx, orderID, s.deps.now())
		if err != nil {
			return nil, err
		}
		if updated {
			changed = append(changed, order)
		}
	}
	return changed, nil
}

func (s *schedulingService) announce(ctx context.Context, changed []*models.Order) {
	for _, order := range changed {
		s.deps.log(ctx).Info("order status changed", zap.Uint("order_id", order.ID), zap.String("status", string(order.Status)))
		if order.Status == models.OrderCompleted {
			s.deps.Notifier.OrderCompleted(ctx, order)
		}
	}
}

func (s *schedulingService) logRejected(ctx context.Context, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		s.deps.log(ctx).Info("work unit change rejected", fields...)
		return
	}
	s.deps.log(ctx).Error("work unit change failed", fields...)
}

// checkPlacement verifies the schedule, slot and order exist and that the pair is free.
// The pair is checked when the unit claims it or lands on it fresh.
func checkPlacement(ctx context.Context, tx repository.Store, scheduleID, slotID uint, state models.WorkUnitState, selfID uint, landing bool) error {
	if _, err := tx.Scheduling().GetDailyScheduleForUpdate(ctx, scheduleID); err != nil {
		return lookupErr(err, "daily schedule", scheduleID)
	}
	if _, err := tx.Scheduling().GetSlot(ctx, slotID); err != nil {
		return lookupErr(err, "time slot", slotID)
	}
	if orderID, ok := state.OrderID(); ok {
		if _, err := tx.Orders().GetByID(ctx, orderID); err != nil {
			return lookupErr(err, "order", orderID)
		}
	}
	if !state.Claims() && !landing {
		return nil
	}

	claimed, err := tx.Scheduling().FindClaimingUnit(ctx, scheduleID, slotID, selfID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check slot availability: %w", err)
	}
	holder := "another order"
	if orderID, ok := claimed.State().OrderID(); ok {
		holder = fmt.Sprintf("order %d", orderID)
	}
	return fmt.Errorf("%w: schedule %d slot %d is %s for %s", ErrSlotAlreadyBooked, scheduleID, slotID, claimed.Status, holder)
}

// lockedWorkUnit re-reads the unit inside the transaction and fails if it moved since the
// locks were chosen.
func lockedWorkUnit(ctx context.Context, tx repository.Store, seen *models.ScheduledWorkUnit) (*models.ScheduledWorkUnit, error) {
	unit, err := tx.Scheduling().GetWorkUnit(ctx, seen.ID)
	if err != nil {
		return nil, lookupErr(err, "work unit", seen.ID)
	}
	was, _ := seen.State().OrderID()
	is, _ := unit.State().OrderID()
	if unit.DailyScheduleID != seen.DailyScheduleID || was != is {
		return nil, fmt.Errorf("%w: work unit %d changed while waiting for locks", ErrConcurrentUpdate, seen.ID)
	}
	return unit, nil
}

// claimErr maps a unique index violation on the claimed pair to a booking conflict.
func claimErr(err error, req WorkUnitRequest) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: schedule %d slot %d", ErrSlotAlreadyBooked, req.DailyScheduleID, req.TimeSlotDefinitionID)
	}
	return fmt.Errorf("failed to save work unit: %w", err)
}

func workUnitFields(unit *models.ScheduledWorkUnit) []zap.Field {
	fields := []zap.Field{
		zap.Uint("work_unit_id", unit.ID),
		zap.Uint("schedule_id", unit.DailyScheduleID),
		zap.Uint("slot_id", unit.TimeSlotDefinitionID),
		zap.String("status", string(unit.Status)),
	}
	if orderID, ok := unit.State().OrderID(); ok {
		fields = append(fields, zap.Uint("order_id", orderID))
	}
	return fields
}
