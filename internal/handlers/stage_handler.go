package handlers

import (
	"net/http"

	"decal_manager/internal/models"
	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
)

type StageHandler struct {
	stageService services.StageService
}

func NewStageHandler(stageService services.StageService) *StageHandler {
	return &StageHandler{stageService: stageService}
}

type StageEntryRequest struct {
	Stage   models.OrderStage `json:"stage" binding:"required"`
	ActorID *uint             `json:"actor_id"`
	Notes   string            `json:"notes"`
}

type NextStageRequest struct {
	ActorID *uint  `json:"actor_id"`
	Notes   string `json:"notes"`
}

type CorrectNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *StageHandler) ListStages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": h.stageService.GetStages()})
}

func (h *StageHandler) ListHistory(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	history, err := h.stageService.ListHistory(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// CreateEntry records an explicit stage without enforcing the transition rule.
func (h *StageHandler) CreateEntry(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req StageEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	entry, err := h.stageService.CreateHistoryEntry(c.Request.Context(), orderID, req.Stage, req.ActorID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *StageHandler) NextStage(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req NextStageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request format")
			return
		}
	}

	entry, err := h.stageService.TransitionToNextStage(c.Request.Context(), orderID, req.ActorID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *StageHandler) CurrentStage(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	progress, err := h.stageService.GetProgress(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *StageHandler) CanTransition(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	stage := models.OrderStage(c.Query("stage"))
	if stage == "" {
		badRequest(c, "stage query parameter is required")
		return
	}

	allowed, err := h.stageService.CanTransitionToStage(c.Request.Context(), orderID, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "stage": stage, "allowed": allowed})
}

func (h *StageHandler) CorrectNotes(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CorrectNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	entry, err := h.stageService.CorrectHistoryNotes(c.Request.Context(), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
