package services

import (
	"context"
	"fmt"
	"strings"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreateOrderInput struct {
	OrderNumber   string
	CustomerName  string
	CustomerPhone string
	VehiclePlate  string
	CreatedBy     *uint
}

// OrderService owns the order lifecycle outside the three engines: creation and
// cascading removal.
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error)
	DeleteOrder(ctx context.Context, id uint) error
}

type orderService struct {
	deps Deps
}

func NewOrderService(deps Deps) OrderService {
	return &orderService{deps: deps.withDefaults()}
}

func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	if input.CustomerName == "" {
		return nil, validationf("customer name is required")
	}
	number := strings.TrimSpace(input.OrderNumber)
	if number == "" {
		number = newOrderNumber(s.deps.now().Format("20060102"))
	}

	order := &models.Order{
		OrderNumber:   number,
		CustomerName:  input.CustomerName,
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		VehiclePlate:  strings.ToUpper(strings.TrimSpace(input.VehiclePlate)),
		TotalAmount:   decimal.Zero,
		Status:        models.OrderNew,
		Version:       1,
		CreatedBy:     input.CreatedBy,
	}
	err := s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if input.CreatedBy != nil {
			if _, err := tx.Employees().GetByID(ctx, *input.CreatedBy); err != nil {
				return lookupErr(err, "employee", *input.CreatedBy)
			}
		}
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.deps.log(ctx).Info("order created", zap.Uint("order_id", order.ID), zap.String("order_number", order.OrderNumber))
	return order, nil
}

func newOrderNumber(day string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", day, suffix)
}

func (s *orderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	order, err := s.deps.Store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "order", id)
	}
	items, err := s.deps.Store.LineItems().GetByOrderID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load line items of order %d: %w", id, err)
	}
	order.LineItems = items
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.deps.Store.Orders().List(ctx, limit, offset)
}

// DeleteOrder removes the order after giving back its stock and releasing its booked slots.
// Orders with completed work are kept for billing.
func (s *orderService) DeleteOrder(ctx context.Context, id uint) error {
	if _, err := s.deps.Store.Orders().GetByID(ctx, id); err != nil {
		return lookupErr(err, "order", id)
	}
	units, err := s.deps.Store.Scheduling().ListWorkUnits(ctx, repository.WorkUnitFilter{OrderID: &id})
	if err != nil {
		return fmt.Errorf("failed to load work units of order %d: %w", id, err)
	}
	keys := []string{orderLockKey(id)}
	locked := make(map[uint]bool)
	for _, unit := range units {
		if !locked[unit.DailyScheduleID] {
			locked[unit.DailyScheduleID] = true
			keys = append(keys, scheduleLockKey(unit.DailyScheduleID))
		}
	}

	var released int
	err = s.deps.withLocks(ctx, keys, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			released = 0
			if _, err := tx.Orders().GetForUpdate(ctx, id); err != nil {
				return lookupErr(err, "order", id)
			}

			units, err := tx.Scheduling().ListWorkUnits(ctx, repository.WorkUnitFilter{OrderID: &id})
			if err != nil {
				return fmt.Errorf("failed to load work units of order %d: %w", id, err)
			}
			for i := range units {
				unit := &units[i]
				if unit.Status == models.WorkUnitCompleted {
					return fmt.Errorf("%w: order %d, work unit %d", ErrOrderHasCompletedWork, id, unit.ID)
				}
				if !locked[unit.DailyScheduleID] {
					return fmt.Errorf("%w: order %d was booked while being deleted", ErrConcurrentUpdate, id)
				}
				unit.SetState(models.Available())
				if err := tx.Scheduling().UpdateWorkUnit(ctx, unit); err != nil {
					return fmt.Errorf("failed to release work unit %d: %w", unit.ID, err)
				}
				released++
			}

			items, err := tx.LineItems().GetByOrderID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load line items of order %d: %w", id, err)
			}
			for i := range items {
				if err := restoreLineItemStock(ctx, tx, &items[i]); err != nil {
					return err
				}
				if err := tx.LineItems().Delete(ctx, items[i].ID); err != nil {
					return fmt.Errorf("failed to delete line item %d: %w", items[i].ID, err)
				}
			}

			if err := tx.StageHistory().DeleteByOrder(ctx, id); err != nil {
				return fmt.Errorf("failed to delete stage history of order %d: %w", id, err)
			}
			if err := tx.Orders().Delete(ctx, id); err != nil {
				return lookupErr(err, "order", id)
			}
			return nil
		})
	})
	if err != nil {
		s.deps.log(ctx).Info("order deletion rejected", zap.Uint("order_id", id), zap.Error(err))
		return err
	}

	if s.deps.StageCache != nil {
		if err := s.deps.StageCache.DeleteOrderStage(ctx, id); err != nil {
			s.deps.log(ctx).Warn("failed to evict cached order stage", zap.Uint("order_id", id), zap.Error(err))
		}
	}
	s.deps.log(ctx).Info("order deleted", zap.Uint("order_id", id), zap.Int("released_work_units", released))
	return nil
}
