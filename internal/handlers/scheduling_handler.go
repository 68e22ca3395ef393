package handlers

import (
	"net/http"
	"time"

	"decal_manager/internal/models"
	"decal_manager/internal/repository"
	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type SchedulingHandler struct {
	schedulingService services.SchedulingService
}

func NewSchedulingHandler(schedulingService services.SchedulingService) *SchedulingHandler {
	return &SchedulingHandler{schedulingService: schedulingService}
}

type TimeSlotRequest struct {
	StartTime string          `json:"start_time" binding:"required"`
	EndTime   string          `json:"end_time" binding:"required"`
	WorkUnits decimal.Decimal `json:"work_units"`
}

type DailyScheduleRequest struct {
	TechnicianID uint   `json:"technician_id" binding:"required"`
	WorkDate     string `json:"work_date" binding:"required"`
}

type WorkUnitRequest struct {
	DailyScheduleID      uint                  `json:"daily_schedule_id" binding:"required"`
	TimeSlotDefinitionID uint                  `json:"time_slot_definition_id" binding:"required"`
	OrderID              *uint                 `json:"order_id"`
	Status               models.WorkUnitStatus `json:"status" binding:"required"`
}

func (r WorkUnitRequest) toService() services.WorkUnitRequest {
	return services.WorkUnitRequest{
		DailyScheduleID:      r.DailyScheduleID,
		TimeSlotDefinitionID: r.TimeSlotDefinitionID,
		OrderID:              r.OrderID,
		Status:               r.Status,
	}
}

func (h *SchedulingHandler) ListTimeSlots(c *gin.Context) {
	slots, err := h.schedulingService.ListTimeSlotDefinitions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"time_slots": slots})
}

func (h *SchedulingHandler) CreateTimeSlot(c *gin.Context) {
	var req TimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	slot, err := h.schedulingService.CreateTimeSlotDefinition(c.Request.Context(), req.StartTime, req.EndTime, req.WorkUnits)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *SchedulingHandler) CreateDailySchedule(c *gin.Context) {
	var req DailyScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	day, err := time.Parse(dateLayout, req.WorkDate)
	if err != nil {
		badRequest(c, "work_date must be YYYY-MM-DD")
		return
	}

	schedule, err := h.schedulingService.CreateDailySchedule(c.Request.Context(), req.TechnicianID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

func (h *SchedulingHandler) ListWorkUnits(c *gin.Context) {
	var filter repository.WorkUnitFilter
	var ok bool
	if filter.OrderID, ok = optionalUintQuery(c, "order_id"); !ok {
		return
	}
	if filter.DailyScheduleID, ok = optionalUintQuery(c, "daily_schedule_id"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status := models.WorkUnitStatus(raw)
		filter.Status = &status
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			badRequest(c, name+" must be YYYY-MM-DD")
			return
		}
		*dst = &day
	}

	units, err := h.schedulingService.ListWorkUnits(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"work_units": units})
}

func (h *SchedulingHandler) CreateWorkUnit(c *gin.Context) {
	var req WorkUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	unit, err := h.schedulingService.CreateScheduledWorkUnit(c.Request.Context(), req.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func (h *SchedulingHandler) GetWorkUnit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	unit, err := h.schedulingService.GetScheduledWorkUnit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *SchedulingHandler) UpdateWorkUnit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req WorkUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	unit, err := h.schedulingService.UpdateScheduledWorkUnit(c.Request.Context(), id, req.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *SchedulingHandler) DeleteWorkUnit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.schedulingService.DeleteScheduledWorkUnit(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
