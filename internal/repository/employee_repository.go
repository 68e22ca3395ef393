package repository

import (
	"context"

	"decal_manager/internal/models"

	"gorm.io/gorm"
)

type employeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	return translate(r.db.WithContext(ctx).Create(employee).Error)
}

func (r *employeeRepository) GetByID(ctx context.Context, id uint) (*models.Employee, error) {
	var employee models.Employee
	err := r.db.WithContext(ctx).First(&employee, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &employee, nil
}

func (r *employeeRepository) GetByPhone(ctx context.Context, phone string) (*models.Employee, error) {
	var employee models.Employee
	err := r.db.WithContext(ctx).Where("phone_number = ?", phone).Order("id").First(&employee).Error
	if err != nil {
		return nil, translate(err)
	}
	return &employee, nil
}

func (r *employeeRepository) List(ctx context.Context) ([]models.Employee, error) {
	var employees []models.Employee
	err := r.db.WithContext(ctx).Order("id").Find(&employees).Error
	return employees, translate(err)
}
