package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLineItem is one purchased service on an order. UnitPrice is a snapshot of the
// catalog price taken when the item was created or explicitly updated.
type OrderLineItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"not null;index"`
	ServiceID uint            `json:"service_id" gorm:"not null;index"`
	Quantity  int             `json:"quantity" gorm:"not null;check:chk_line_item_quantity,quantity > 0"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Service *Service `json:"service,omitempty" gorm:"foreignKey:ServiceID;constraint:OnDelete:RESTRICT"`
}

// Subtotal is UnitPrice * Quantity.
func (i OrderLineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
