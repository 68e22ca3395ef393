package services

import (
	"context"
	"errors"
	"fmt"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"go.uber.org/zap"
)

// LineItemService mutates order line items while keeping product stock and the order
// total consistent. Every mutation holds the order lock and runs in one transaction.
type LineItemService interface {
	CreateLineItem(ctx context.Context, orderID, serviceID uint, quantity int) (*models.OrderLineItem, error)
	UpdateLineItem(ctx context.Context, lineItemID, serviceID uint, quantity int) (*models.OrderLineItem, error)
	DeleteLineItem(ctx context.Context, lineItemID uint) error
	GetLineItem(ctx context.Context, lineItemID uint) (*models.OrderLineItem, error)
	ListLineItems(ctx context.Context, orderID uint) ([]models.OrderLineItem, error)
}

type lineItemService struct {
	deps Deps
}

func NewLineItemService(deps Deps) LineItemService {
	return &lineItemService{deps: deps.withDefaults()}
}

func (s *lineItemService) CreateLineItem(ctx context.Context, orderID, serviceID uint, quantity int) (*models.OrderLineItem, error) {
	if quantity <= 0 {
		return nil, validationf("quantity must be positive, got %d", quantity)
	}

	var created *models.OrderLineItem
	var order *models.Order
	err := s.deps.withLocks(ctx, []string{orderLockKey(orderID)}, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			var err error
			order, err = tx.Orders().GetForUpdate(ctx, orderID)
			if err != nil {
				return lookupErr(err, "order", orderID)
			}
			bom, err := NewBillOfMaterialsResolver(tx.Catalog()).Resolve(ctx, serviceID)
			if err != nil {
				return err
			}

			move := stockMovement{deduct: bom.Requirements(quantity)}
			if err := move.apply(ctx, tx.Products()); err != nil {
				return err
			}

			item := &models.OrderLineItem{
				OrderID:   orderID,
				ServiceID: serviceID,
				Quantity:  quantity,
				UnitPrice: bom.UnitPrice,
			}
			if err := tx.LineItems().Create(ctx, item); err != nil {
				return fmt.Errorf("failed to create line item: %w", err)
			}
			if err := s.saveTotal(ctx, tx, order); err != nil {
				return err
			}
			created = item
			return nil
		})
	})
	if err != nil {
		s.logRejected(ctx, "create", err, zap.Uint("order_id", orderID), zap.Uint("service_id", serviceID), zap.Int("quantity", quantity))
		return nil, err
	}

	s.deps.log(ctx).Info("line item created",
		zap.Uint("order_id", orderID),
		zap.Uint("line_item_id", created.ID),
		zap.Uint("service_id", serviceID),
		zap.Int("quantity", quantity),
		zap.String("order_total", order.TotalAmount.StringFixed(2)),
	)
	return created, nil
}

func (s *lineItemService) UpdateLineItem(ctx context.Context, lineItemID, serviceID uint, quantity int) (*models.OrderLineItem, error) {
	if quantity <= 0 {
		return nil, validationf("quantity must be positive, got %d", quantity)
	}

	existing, err := s.deps.Store.LineItems().GetByID(ctx, lineItemID)
	if err != nil {
		return nil, lookupErr(err, "line item", lineItemID)
	}

	var updated *models.OrderLineItem
	err = s.deps.withLocks(ctx, []string{orderLockKey(existing.OrderID)}, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			item, err := tx.LineItems().GetByID(ctx, lineItemID)
			if err != nil {
				return lookupErr(err, "line item", lineItemID)
			}
			order, err := tx.Orders().GetForUpdate(ctx, item.OrderID)
			if err != nil {
				return lookupErr(err, "order", item.OrderID)
			}

			resolver := NewBillOfMaterialsResolver(tx.Catalog())
			original, err := resolver.Resolve(ctx, item.ServiceID)
			if err != nil {
				return err
			}
			replacement := original
			if serviceID != item.ServiceID {
				if replacement, err = resolver.Resolve(ctx, serviceID); err != nil {
					return err
				}
			}

			// Restore and deduct are checked together and written in the same transaction,
			// so a failed deduction leaves stock exactly as it was.
			if serviceID != item.ServiceID || quantity != item.Quantity {
				move := stockMovement{
					restore: original.Requirements(item.Quantity),
					deduct:  replacement.Requirements(quantity),
				}
				if err := move.apply(ctx, tx.Products()); err != nil {
					return err
				}
			}

			item.ServiceID = serviceID
			item.Quantity = quantity
			item.UnitPrice = replacement.UnitPrice
			if err := tx.LineItems().Update(ctx, item); err != nil {
				return fmt.Errorf("failed to update line item %d: %w", item.ID, err)
			}
			if err := s.saveTotal(ctx, tx, order); err != nil {
				return err
			}
			updated = item
			return nil
		})
	})
	if err != nil {
		s.logRejected(ctx, "update", err, zap.Uint("line_item_id", lineItemID), zap.Uint("service_id", serviceID), zap.Int("quantity", quantity))
		return nil, err
	}

	s.deps.log(ctx).Info("line item updated",
		zap.Uint("order_id", updated.OrderID),
		zap.Uint("line_item_id", updated.ID),
		zap.Uint("service_id", updated.ServiceID),
		zap.Int("quantity", updated.Quantity),
	)
	return updated, nil
}

func (s *lineItemService) DeleteLineItem(ctx context.Context, lineItemID uint) error {
	existing, err := s.deps.Store.LineItems().GetByID(ctx, lineItemID)
	if err != nil {
		return lookupErr(err, "line item", lineItemID)
	}

	err = s.deps.withLocks(ctx, []string{orderLockKey(existing.OrderID)}, func() error {
		return s.deps.transaction(ctx, func(ctx context.Context, tx repository.Store) error {
			item, err := tx.LineItems().GetByID(ctx, lineItemID)
			if err != nil {
				return lookupErr(err, "line item", lineItemID)
			}
			order, err := tx.Orders().GetForUpdate(ctx, item.OrderID)
			if err != nil {
				return lookupErr(err, "order", item.OrderID)
			}
			if err := restoreLineItemStock(ctx, tx, item); err != nil {
				return err
			}
			if err := tx.LineItems().Delete(ctx, item.ID); err != nil {
				return fmt.Errorf("failed to delete line item %d: %w", item.ID, err)
			}
			return s.saveTotal(ctx, tx, order)
		})
	})
	if err != nil {
		s.logRejected(ctx, "delete", err, zap.Uint("line_item_id", lineItemID))
		return err
	}

	s.deps.log(ctx).Info("line item deleted",
		zap.Uint("order_id", existing.OrderID),
		zap.Uint("line_item_id", lineItemID),
	)
	return nil
}

func (s *lineItemService) GetLineItem(ctx context.Context, lineItemID uint) (*models.OrderLineItem, error) {
	item, err := s.deps.Store.LineItems().GetByID(ctx, lineItemID)
	if err != nil {
		return nil, lookupErr(err, "line item", lineItemID)
	}
	return item, nil
}

func (s *lineItemService) ListLineItems(ctx context.Context, orderID uint) ([]models.OrderLineItem, error) {
	if _, err := s.deps.Store.Orders().GetByID(ctx, orderID); err != nil {
		return nil, lookupErr(err, "order", orderID)
	}
	items, err := s.deps.Store.LineItems().GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items of order %d: %w", orderID, err)
	}
	return items, nil
}

func (s *lineItemService) saveTotal(ctx context.Context, tx repository.Store, order *models.Order) error {
	if err := recomputeTotal(ctx, tx, order); err != nil {
		return err
	}
	if err := tx.Orders().UpdateDerived(ctx, order); err != nil {
		return fmt.Errorf("failed to update total of order %d: %w", order.ID, err)
	}
	return nil
}

func (s *lineItemService) logRejected(ctx context.Context, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		s.deps.log(ctx).Info("line item change rejected", fields...)
		return
	}
	s.deps.log(ctx).Error("line item change failed", fields...)
}

// restoreLineItemStock gives back everything the line item consumed.
func restoreLineItemStock(ctx context.Context, tx repository.Store, item *models.OrderLineItem) error {
	bom, err := NewBillOfMaterialsResolver(tx.Catalog()).Resolve(ctx, item.ServiceID)
	if err != nil {
		return err
	}
	move := stockMovement{restore: bom.Requirements(item.Quantity)}
	return move.apply(ctx, tx.Products())
}
