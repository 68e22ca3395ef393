package repository

import (
	"context"

	"decal_manager/internal/models"

	"gorm.io/gorm"
)

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) CreateService(ctx context.Context, service *models.Service) error {
	return translate(r.db.WithContext(ctx).Create(service).Error)
}

func (r *catalogRepository) GetService(ctx context.Context, id uint) (*models.Service, error) {
	var service models.Service
	err := r.db.WithContext(ctx).First(&service, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &service, nil
}

func (r *catalogRepository) GetServices(ctx context.Context, ids []uint) (map[uint]*models.Service, error) {
	out := make(map[uint]*models.Service, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var services []models.Service
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&services).Error; err != nil {
		return nil, translate(err)
	}
	for i := range services {
		out[services[i].ID] = &services[i]
	}
	return out, nil
}

func (r *catalogRepository) CreateComponent(ctx context.Context, entry *models.BillOfMaterialsEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *catalogRepository) ListComponents(ctx context.Context, serviceID uint) ([]models.BillOfMaterialsEntry, error) {
	var entries []models.BillOfMaterialsEntry
	err := r.db.WithContext(ctx).Where("service_id = ?", serviceID).Order("product_id").Find(&entries).Error
	return entries, translate(err)
}
