package models

import (
	"time"
)

type Employee struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	FullName    string       `json:"full_name" gorm:"not null"`
	PhoneNumber string       `json:"phone_number" gorm:"index"`
	Role        EmployeeRole `json:"role" gorm:"type:varchar(16);default:'technician'"`
	IsActive    bool         `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type EmployeeRole string

const (
	RoleTechnician EmployeeRole = "technician"
	RoleScheduler  EmployeeRole = "scheduler"
	RoleManager    EmployeeRole = "manager"
)

func (r EmployeeRole) Valid() bool {
	switch r {
	case RoleTechnician, RoleScheduler, RoleManager:
		return true
	}
	return false
}
