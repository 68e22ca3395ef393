package repository

import (
	"context"
	"time"

	"decal_manager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type schedulingRepository struct {
	db *gorm.DB
}

func NewSchedulingRepository(db *gorm.DB) SchedulingRepository {
	return &schedulingRepository{db: db}
}

func (r *schedulingRepository) CreateSlot(ctx context.Context, slot *models.TimeSlotDefinition) error {
	return translate(r.db.WithContext(ctx).Create(slot).Error)
}

func (r *schedulingRepository) GetSlot(ctx context.Context, id uint) (*models.TimeSlotDefinition, error) {
	var slot models.TimeSlotDefinition
	err := r.db.WithContext(ctx).First(&slot, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &slot, nil
}

func (r *schedulingRepository) GetSlots(ctx context.Context, ids []uint) (map[uint]*models.TimeSlotDefinition, error) {
	out := make(map[uint]*models.TimeSlotDefinition, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var slots []models.TimeSlotDefinition
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&slots).Error; err != nil {
		return nil, translate(err)
	}
	for i := range slots {
		out[slots[i].ID] = &slots[i]
	}
	return out, nil
}

func (r *schedulingRepository) ListSlots(ctx context.Context) ([]models.TimeSlotDefinition, error) {
	var slots []models.TimeSlotDefinition
	err := r.db.WithContext(ctx).Order("start_time").Find(&slots).Error
	return slots, translate(err)
}

func (r *schedulingRepository) CreateDailySchedule(ctx context.Context, schedule *models.TechnicianDailySchedule) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(schedule).Error)
}

func (r *schedulingRepository) GetDailySchedule(ctx context.Context, id uint) (*models.TechnicianDailySchedule, error) {
	var schedule models.TechnicianDailySchedule
	err := r.db.WithContext(ctx).First(&schedule, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &schedule, nil
}

func (r *schedulingRepository) GetDailyScheduleForUpdate(ctx context.Context, id uint) (*models.TechnicianDailySchedule, error) {
	var schedule models.TechnicianDailySchedule
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&schedule, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &schedule, nil
}

func (r *schedulingRepository) CreateWorkUnit(ctx context.Context, unit *models.ScheduledWorkUnit) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(unit).Error)
}

func (r *schedulingRepository) GetWorkUnit(ctx context.Context, id uint) (*models.ScheduledWorkUnit, error) {
	var unit models.ScheduledWorkUnit
	err := r.db.WithContext(ctx).First(&unit, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &unit, nil
}

func (r *schedulingRepository) UpdateWorkUnit(ctx context.Context, unit *models.ScheduledWorkUnit) error {
	result := r.db.WithContext(ctx).Model(&models.ScheduledWorkUnit{}).
		Where("id = ?", unit.ID).
		Updates(map[string]interface{}{
			"daily_schedule_id":       unit.DailyScheduleID,
			"time_slot_definition_id": unit.TimeSlotDefinitionID,
			"order_id":                unit.OrderID,
			"status":                  unit.Status,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *schedulingRepository) DeleteWorkUnit(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ScheduledWorkUnit{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *schedulingRepository) ListWorkUnits(ctx context.Context, filter WorkUnitFilter) ([]models.ScheduledWorkUnit, error) {
	query := r.db.WithContext(ctx).Model(&models.ScheduledWorkUnit{})
	if filter.OrderID != nil {
		query = query.Where("scheduled_work_units.order_id = ?", *filter.OrderID)
	}
	if filter.DailyScheduleID != nil {
		query = query.Where("scheduled_work_units.daily_schedule_id = ?", *filter.DailyScheduleID)
	}
	if filter.Status != nil {
		query = query.Where("scheduled_work_units.status = ?", *filter.Status)
	}
	if filter.From != nil || filter.To != nil {
		query = query.Joins("JOIN technician_daily_schedules ON technician_daily_schedules.id = scheduled_work_units.daily_schedule_id")
		if filter.From != nil {
			query = query.Where("technician_daily_schedules.work_date >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("technician_daily_schedules.work_date <= ?", *filter.To)
		}
	}

	var units []models.ScheduledWorkUnit
	err := query.Order("scheduled_work_units.id").Find(&units).Error
	return units, translate(err)
}

func (r *schedulingRepository) FindClaimingUnit(ctx context.Context, dailyScheduleID, slotID, excludeID uint) (*models.ScheduledWorkUnit, error) {
	var unit models.ScheduledWorkUnit
	err := r.db.WithContext(ctx).
		Where("daily_schedule_id = ? AND time_slot_definition_id = ?", dailyScheduleID, slotID).
		Where("status IN ?", []models.WorkUnitStatus{models.WorkUnitBooked, models.WorkUnitCompleted}).
		Where("id <> ?", excludeID).
		Take(&unit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &unit, nil
}

func (r *schedulingRepository) HasAvailableUnitsFrom(ctx context.Context, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ScheduledWorkUnit{}).
		Joins("JOIN technician_daily_schedules ON technician_daily_schedules.id = scheduled_work_units.daily_schedule_id").
		Where("scheduled_work_units.status = ?", models.WorkUnitAvailable).
		Where("technician_daily_schedules.work_date >= ?", day).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}
