package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stock-keeping material (film, laminate, ...) consumed by services.
type Product struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	SKU           string    `json:"sku" gorm:"unique;not null"`
	Name          string    `json:"name" gorm:"not null"`
	Unit          string    `json:"unit" gorm:"not null;default:'pcs'"`
	StockQuantity int       `json:"stock_quantity" gorm:"not null;default:0;check:chk_product_stock,stock_quantity >= 0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Service is a sellable catalog entry. StandardWorkUnits sizes the installation effort per unit sold.
type Service struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	Name              string          `json:"name" gorm:"not null"`
	UnitPrice         decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,2);not null"`
	StandardWorkUnits decimal.Decimal `json:"standard_work_units" gorm:"type:numeric(8,2);not null;default:0"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BillOfMaterialsEntry says one unit of Service consumes QuantityPerUnit of Product.
type BillOfMaterialsEntry struct {
	ID              uint `json:"id" gorm:"primaryKey"`
	ServiceID       uint `json:"service_id" gorm:"not null;uniqueIndex:ux_bom_service_product"`
	ProductID       uint `json:"product_id" gorm:"not null;uniqueIndex:ux_bom_service_product"`
	QuantityPerUnit int  `json:"quantity_per_unit" gorm:"not null;check:chk_bom_quantity,quantity_per_unit > 0"`
}

func (BillOfMaterialsEntry) TableName() string {
	return "bill_of_materials_entries"
}
