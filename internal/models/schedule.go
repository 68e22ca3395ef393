package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const clockLayout = "15:04"

// TimeSlotDefinition is a reusable daily time window such as 09:00-11:00.
type TimeSlotDefinition struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	StartTime string          `json:"start_time" gorm:"type:varchar(5);not null;uniqueIndex:ux_time_slot_window"`
	EndTime   string          `json:"end_time" gorm:"type:varchar(5);not null;uniqueIndex:ux_time_slot_window"`
	WorkUnits decimal.Decimal `json:"work_units" gorm:"type:numeric(8,2);not null;default:0"`
	CreatedAt time.Time       `json:"created_at"`
}

// Window parses the start and end clock times.
func (s TimeSlotDefinition) Window() (time.Time, time.Time, error) {
	start, err := time.Parse(clockLayout, s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	end, err := time.Parse(clockLayout, s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q: %w", s.EndTime, err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end time %s must be after start time %s", s.EndTime, s.StartTime)
	}
	return start, end, nil
}

// Units is how many work units one booking of this slot delivers: WorkUnits when set,
// otherwise the slot's length in hours.
func (s TimeSlotDefinition) Units() decimal.Decimal {
	if s.WorkUnits.IsPositive() {
		return s.WorkUnits
	}
	start, end, err := s.Window()
	if err != nil {
		return decimal.Zero
	}
	minutes := decimal.NewFromInt(int64(end.Sub(start) / time.Minute))
	return minutes.Div(decimal.NewFromInt(60)).Round(2)
}

// TechnicianDailySchedule is one technician's availability on one calendar day.
type TechnicianDailySchedule struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TechnicianID uint      `json:"technician_id" gorm:"not null;uniqueIndex:ux_daily_schedule_technician_date"`
	WorkDate     time.Time `json:"work_date" gorm:"type:date;not null;uniqueIndex:ux_daily_schedule_technician_date;index"`
	CreatedAt    time.Time `json:"created_at"`

	Technician *Employee `json:"technician,omitempty" gorm:"foreignKey:TechnicianID;constraint:OnDelete:RESTRICT"`
}

type WorkUnitStatus string

const (
	WorkUnitAvailable WorkUnitStatus = "available"
	WorkUnitBooked    WorkUnitStatus = "booked"
	WorkUnitCompleted WorkUnitStatus = "completed"
)

func (s WorkUnitStatus) Valid() bool {
	switch s {
	case WorkUnitAvailable, WorkUnitBooked, WorkUnitCompleted:
		return true
	}
	return false
}

// ScheduledWorkUnit binds one technician's slot on one day to, optionally, an order.
// Status and OrderID are written together through SetState.
type ScheduledWorkUnit struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	DailyScheduleID      uint           `json:"daily_schedule_id" gorm:"not null;index:idx_work_unit_slot,priority:1"`
	TimeSlotDefinitionID uint           `json:"time_slot_definition_id" gorm:"not null;index:idx_work_unit_slot,priority:2"`
	OrderID              *uint          `json:"order_id" gorm:"index"`
	Status               WorkUnitStatus `json:"status" gorm:"type:varchar(16);not null;default:'available'"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`

	DailySchedule *TechnicianDailySchedule `json:"-" gorm:"foreignKey:DailyScheduleID;constraint:OnDelete:CASCADE"`
	TimeSlot      *TimeSlotDefinition      `json:"-" gorm:"foreignKey:TimeSlotDefinitionID;constraint:OnDelete:RESTRICT"`
	Order         *Order                   `json:"-" gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
}

var ErrInvalidWorkUnitState = errors.New("invalid work unit state")

// WorkUnitState is the closed set {Available, Booked(order), Completed(order)}.
type WorkUnitState struct {
	status  WorkUnitStatus
	orderID uint
}

func Available() WorkUnitState { return WorkUnitState{status: WorkUnitAvailable} }

func BookedFor(orderID uint) WorkUnitState {
	return WorkUnitState{status: WorkUnitBooked, orderID: orderID}
}

func CompletedFor(orderID uint) WorkUnitState {
	return WorkUnitState{status: WorkUnitCompleted, orderID: orderID}
}

// NewWorkUnitState validates a status/order pairing coming from outside.
func NewWorkUnitState(status WorkUnitStatus, orderID *uint) (WorkUnitState, error) {
	hasOrder := orderID != nil && *orderID != 0
	switch status {
	case WorkUnitAvailable:
		if hasOrder {
			return WorkUnitState{}, fmt.Errorf("%w: an available unit cannot reference an order", ErrInvalidWorkUnitState)
		}
		return Available(), nil
	case WorkUnitBooked, WorkUnitCompleted:
		if !hasOrder {
			return WorkUnitState{}, fmt.Errorf("%w: a %s unit requires an order", ErrInvalidWorkUnitState, status)
		}
		return WorkUnitState{status: status, orderID: *orderID}, nil
	default:
		return WorkUnitState{}, fmt.Errorf("%w: unknown status %q", ErrInvalidWorkUnitState, status)
	}
}

func (s WorkUnitState) Status() WorkUnitStatus {
	if s.status == "" {
		return WorkUnitAvailable
	}
	return s.status
}

func (s WorkUnitState) OrderID() (uint, bool) {
	return s.orderID, s.orderID != 0
}

// Claims reports whether the state holds the technician slot for an order.
func (s WorkUnitState) Claims() bool {
	return s.status == WorkUnitBooked || s.status == WorkUnitCompleted
}

func (u *ScheduledWorkUnit) State() WorkUnitState {
	if u.OrderID == nil {
		return Available()
	}
	return WorkUnitState{status: u.Status, orderID: *u.OrderID}
}

func (u *ScheduledWorkUnit) SetState(s WorkUnitState) {
	u.Status = s.Status()
	if id, ok := s.OrderID(); ok {
		u.OrderID = &id
		return
	}
	u.OrderID = nil
}
