package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"

	"github.com/shopspring/decimal"
)

// stockMovement describes a combined restore-then-deduct against the stock ledger.
// restore is given back first, then deduct is taken; both are product id -> quantity.
type stockMovement struct {
	restore map[uint]int
	deduct  map[uint]int
}

func (m stockMovement) productIDs() []uint {
	seen := make(map[uint]struct{}, len(m.restore)+len(m.deduct))
	for id := range m.restore {
		seen[id] = struct{}{}
	}
	for id := range m.deduct {
		seen[id] = struct{}{}
	}
	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// apply checks every product before touching any of them, then writes the net change.
// On an insufficiency nothing has been written.
func (m stockMovement) apply(ctx context.Context, products repository.ProductRepository) error {
	ids := m.productIDs()
	if len(ids) == 0 {
		return nil
	}
	locked, err := products.GetForUpdate(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to lock products: %w", err)
	}

	for _, id := range ids {
		product, ok := locked[id]
		if !ok {
			return notFound("product", id)
		}
		required := m.deduct[id]
		available := product.StockQuantity + m.restore[id]
		if required > available {
			return &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Unit:        product.Unit,
				Available:   available,
				Required:    required,
			}
		}
	}

	for _, id := range ids {
		delta := m.deduct[id] - m.restore[id]
		switch {
		case delta > 0:
			err = products.Decrement(ctx, id, delta)
		case delta < 0:
			err = products.Increment(ctx, id, -delta)
		default:
			continue
		}
		if err != nil {
			if errors.Is(err, repository.ErrStockGuard) {
				// the row lock should make this impossible; surface it as a race
				return fmt.Errorf("product %d changed underneath: %w", id, repository.ErrStaleWrite)
			}
			return fmt.Errorf("failed to move stock for product %d: %w", id, err)
		}
	}
	return nil
}

// recomputeTotal sets order.TotalAmount from the persisted line items.
func recomputeTotal(ctx context.Context, tx repository.Store, order *models.Order) error {
	items, err := tx.LineItems().GetByOrderID(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load line items of order %d: %w", order.ID, err)
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	order.TotalAmount = total.Round(2)
	return nil
}
