package repository

import (
	"context"

	"decal_manager/internal/models"

	"gorm.io/gorm"
)

type stageHistoryRepository struct {
	db *gorm.DB
}

func NewStageHistoryRepository(db *gorm.DB) StageHistoryRepository {
	return &stageHistoryRepository{db: db}
}

func (r *stageHistoryRepository) Append(ctx context.Context, entry *models.OrderStageHistory) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *stageHistoryRepository) GetByID(ctx context.Context, id uint) (*models.OrderStageHistory, error) {
	var entry models.OrderStageHistory
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *stageHistoryRepository) Latest(ctx context.Context, orderID uint) (*models.OrderStageHistory, error) {
	var entry models.OrderStageHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("changed_at DESC").
		Order("id DESC").
		Take(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *stageHistoryRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.OrderStageHistory, error) {
	var entries []models.OrderStageHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("changed_at").
		Order("id").
		Find(&entries).Error
	return entries, translate(err)
}

// UpdateNotes is the only mutation allowed on a written history entry.
func (r *stageHistoryRepository) UpdateNotes(ctx context.Context, id uint, notes string) error {
	result := r.db.WithContext(ctx).Model(&models.OrderStageHistory{}).Where("id = ?", id).Update("notes", notes)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *stageHistoryRepository) DeleteByOrder(ctx context.Context, orderID uint) error {
	return translate(r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderStageHistory{}).Error)
}
