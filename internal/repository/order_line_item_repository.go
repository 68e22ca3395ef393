package repository

import (
	"context"

	"decal_manager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderLineItemRepository struct {
	db *gorm.DB
}

func NewOrderLineItemRepository(db *gorm.DB) OrderLineItemRepository {
	return &orderLineItemRepository{db: db}
}

func (r *orderLineItemRepository) Create(ctx context.Context, item *models.OrderLineItem) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error)
}

func (r *orderLineItemRepository) GetByID(ctx context.Context, id uint) (*models.OrderLineItem, error) {
	var item models.OrderLineItem
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *orderLineItemRepository) GetByOrderID(ctx context.Context, orderID uint) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&items).Error
	if err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (r *orderLineItemRepository) Update(ctx context.Context, item *models.OrderLineItem) error {
	result := r.db.WithContext(ctx).Model(&models.OrderLineItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"service_id": item.ServiceID,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderLineItemRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.OrderLineItem{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
