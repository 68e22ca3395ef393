package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate shared by the line item, stage and scheduling engines.
// TotalAmount, Status and CurrentStage are derived; they are only written by those engines.
type Order struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	OrderNumber   string          `json:"order_number" gorm:"unique;not null"`
	CustomerName  string          `json:"customer_name" gorm:"not null"`
	CustomerPhone string          `json:"customer_phone"`
	VehiclePlate  string          `json:"vehicle_plate"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2);not null;default:0"`
	Status        OrderStatus     `json:"order_status" gorm:"column:order_status;type:varchar(32);not null;default:'New'"`
	CurrentStage  *OrderStage     `json:"current_stage" gorm:"type:varchar(32)"`
	Version       int             `json:"version" gorm:"not null;default:1"`
	CreatedBy     *uint           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	LineItems []OrderLineItem `json:"line_items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
}

type OrderStatus string

const (
	OrderNew             OrderStatus = "New"
	OrderAssigned        OrderStatus = "Assigned"
	OrderInProgress      OrderStatus = "In Progress"
	OrderCompleted       OrderStatus = "Completed"
	OrderReadyForPayment OrderStatus = "Ready For Payment"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderNew, OrderAssigned, OrderInProgress, OrderCompleted, OrderReadyForPayment:
		return true
	}
	return false
}
