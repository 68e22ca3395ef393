package handlers

import (
	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the engines the HTTP API exposes.
type Services struct {
	Orders     services.OrderService
	LineItems  services.LineItemService
	Stages     services.StageService
	Scheduling services.SchedulingService
	Employees  services.EmployeeService
}

type RouterConfig struct {
	Services     Services
	Logger       *zap.Logger
	HealthChecks []HealthCheck
	// Replier enables the WhatsApp webhook when set.
	Replier Replier
}

func SetupRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestLogger(logger), Recovery(logger))

	orderHandler := NewOrderHandler(cfg.Services.Orders, cfg.Services.Scheduling)
	lineItemHandler := NewLineItemHandler(cfg.Services.LineItems)
	stageHandler := NewStageHandler(cfg.Services.Stages)
	schedulingHandler := NewSchedulingHandler(cfg.Services.Scheduling)
	employeeHandler := NewEmployeeHandler(cfg.Services.Employees)
	healthHandler := NewHealthHandler(cfg.HealthChecks...)

	router.GET("/healthz", healthHandler.Health)

	if cfg.Replier != nil {
		whatsappHandler := NewWhatsAppHandler(cfg.Replier, cfg.Services.Employees, cfg.Services.Stages, cfg.Services.Scheduling)
		router.POST("/api/whatsapp/webhook", whatsappHandler.HandleWebhook)
	}

	api := router.Group("/api")
	{
		api.POST("/orders", orderHandler.CreateOrder)
		api.GET("/orders", orderHandler.ListOrders)
		api.GET("/orders/:id", orderHandler.GetOrder)
		api.DELETE("/orders/:id", orderHandler.DeleteOrder)
		api.POST("/orders/:id/status/recompute", orderHandler.RecomputeStatus)

		// Line items
		api.GET("/orders/:id/line-items", lineItemHandler.ListLineItems)
		api.POST("/orders/:id/line-items", lineItemHandler.CreateLineItem)
		api.PUT("/line-items/:id", lineItemHandler.UpdateLineItem)
		api.DELETE("/line-items/:id", lineItemHandler.DeleteLineItem)

		// Stages
		api.GET("/stages", stageHandler.ListStages)
		api.GET("/orders/:id/stages", stageHandler.ListHistory)
		api.POST("/orders/:id/stages", stageHandler.CreateEntry)
		api.POST("/orders/:id/stages/next", stageHandler.NextStage)
		api.GET("/orders/:id/stages/current", stageHandler.CurrentStage)
		api.GET("/orders/:id/stages/can-transition", stageHandler.CanTransition)
		api.PATCH("/stage-history/:id", stageHandler.CorrectNotes)

		// Scheduling
		api.GET("/time-slots", schedulingHandler.ListTimeSlots)
		api.POST("/time-slots", schedulingHandler.CreateTimeSlot)
		api.POST("/daily-schedules", schedulingHandler.CreateDailySchedule)
		api.GET("/work-units", schedulingHandler.ListWorkUnits)
		api.POST("/work-units", schedulingHandler.CreateWorkUnit)
		api.GET("/work-units/:id", schedulingHandler.GetWorkUnit)
		api.PUT("/work-units/:id", schedulingHandler.UpdateWorkUnit)
		api.DELETE("/work-units/:id", schedulingHandler.DeleteWorkUnit)

		// Employees
		api.GET("/employees", employeeHandler.ListEmployees)
		api.POST("/employees", employeeHandler.CreateEmployee)
		api.GET("/employees/:id", employeeHandler.GetEmployee)
	}

	return router
}
