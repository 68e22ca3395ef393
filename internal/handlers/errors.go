package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"decal_manager/internal/logging"
	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const retryAfterSeconds = 1

type ErrorResponse struct {
	Error     string      `json:"error"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

var conflictCodes = []struct {
	err  error
	code string
}{
	{services.ErrInsufficientStock, "insufficient_stock"},
	{services.ErrSlotAlreadyBooked, "slot_already_booked"},
	{services.ErrIllegalTransition, "illegal_stage_transition"},
	{services.ErrTerminalStage, "terminal_stage"},
	{services.ErrWorkUnitCompleted, "work_unit_completed"},
	{services.ErrOrderHasCompletedWork, "order_has_completed_work"},
	{services.ErrDuplicate, "duplicate"},
}

func conflictCode(err error) string {
	for _, c := range conflictCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "conflict"
}

// respondError writes the error in the shared envelope with a status matching its class.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var stock *services.InsufficientStockError
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation_failed"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, services.ErrConcurrentUpdate):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "concurrent_update", Retryable: true})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "insufficient_stock",
			Details: gin.H{
				"product_id":   stock.ProductID,
				"product_name": stock.ProductName,
				"unit":         stock.Unit,
				"available":    stock.Available,
				"required":     stock.Required,
				"deficit":      stock.Deficit(),
			},
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: conflictCode(err)})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request timed out", Code: "timeout", Retryable: true})
	default:
		logging.FromContext(c.Request.Context(), zap.NewNop()).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal_error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_request"})
}

// idParam parses a positive numeric path parameter, writing a 400 when it is not one.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func optionalUintQuery(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return nil, false
	}
	id := uint(v)
	return &id, true
}
