package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"
	"decal_manager/pkg/whatsapp"

	"go.uber.org/zap"
)

type EmployeeService interface {
	CreateEmployee(ctx context.Context, fullName, phoneNumber string, role models.EmployeeRole) (*models.Employee, error)
	GetEmployee(ctx context.Context, id uint) (*models.Employee, error)
	// GetEmployeeByPhone matches the number in international form.
	GetEmployeeByPhone(ctx context.Context, phone string) (*models.Employee, error)
	ListEmployees(ctx context.Context) ([]models.Employee, error)
}

type employeeService struct {
	deps Deps
}

func NewEmployeeService(deps Deps) EmployeeService {
	return &employeeService{deps: deps.withDefaults()}
}

func (s *employeeService) CreateEmployee(ctx context.Context, fullName, phoneNumber string, role models.EmployeeRole) (*models.Employee, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, validationf("full name is required")
	}
	if role == "" {
		role = models.RoleTechnician
	}
	if !role.Valid() {
		return nil, validationf("unknown role %q", role)
	}

	employee := &models.Employee{
		FullName:    fullName,
		PhoneNumber: whatsapp.NormalizePhone(phoneNumber),
		Role:        role,
		IsActive:    true,
	}
	if err := storeErr(s.deps.Store.Employees().Create(ctx, employee)); err != nil {
		return nil, err
	}
	s.deps.log(ctx).Info("employee created", zap.Uint("employee_id", employee.ID), zap.String("role", string(role)))
	return employee, nil
}

func (s *employeeService) GetEmployee(ctx context.Context, id uint) (*models.Employee, error) {
	employee, err := s.deps.Store.Employees().GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "employee", id)
	}
	return employee, nil
}

func (s *employeeService) GetEmployeeByPhone(ctx context.Context, phone string) (*models.Employee, error) {
	normalized := whatsapp.NormalizePhone(phone)
	if normalized == "" {
		return nil, validationf("phone number is required")
	}
	employee, err := s.deps.Store.Employees().GetByPhone(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: no employee with phone %s", ErrNotFound, normalized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up employee by phone: %w", err)
	}
	if !employee.IsActive {
		return nil, fmt.Errorf("%w: employee %d is not active", ErrNotFound, employee.ID)
	}
	return employee, nil
}

func (s *employeeService) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	return s.deps.Store.Employees().List(ctx)
}
