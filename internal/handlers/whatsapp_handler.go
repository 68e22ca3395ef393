package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"decal_manager/internal/logging"
	"decal_manager/internal/models"
	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Replier sends a WhatsApp text back to the sender.
type Replier interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

// WhatsAppHandler lets staff drive stages and work units by chat command.
type WhatsAppHandler struct {
	replier           Replier
	employeeService   services.EmployeeService
	stageService      services.StageService
	schedulingService services.SchedulingService
}

func NewWhatsAppHandler(
	replier Replier,
	employeeService services.EmployeeService,
	stageService services.StageService,
	schedulingService services.SchedulingService,
) *WhatsAppHandler {
	return &WhatsAppHandler{
		replier:           replier,
		employeeService:   employeeService,
		stageService:      stageService,
		schedulingService: schedulingService,
	}
}

type WebhookRequest struct {
	SenderID  string `json:"sender_id"`
	ChatID    string `json:"chat_id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Pushname  string `json:"pushname"`
	Message   struct {
		Text          string `json:"text"`
		ID            string `json:"id"`
		RepliedID     string `json:"replied_id"`
		QuotedMessage string `json:"quoted_message"`
	} `json:"message"`
}

func (h *WhatsAppHandler) HandleWebhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	ctx := c.Request.Context()

	// from looks like 628123456789@s.whatsapp.net
	phoneNumber := req.From
	if phoneNumber == "" {
		phoneNumber = req.SenderID
	}
	phoneNumber = strings.TrimSuffix(phoneNumber, "@s.whatsapp.net")
	if phoneNumber == "" {
		badRequest(c, "Missing sender")
		return
	}

	employee, err := h.employeeService.GetEmployeeByPhone(ctx, phoneNumber)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			respondError(c, err)
			return
		}
		h.reply(c, phoneNumber, "This number is not registered. Please contact the workshop manager.", "unknown_sender")
		return
	}

	response := h.processCommand(ctx, employee, req.Message.Text)
	h.reply(c, phoneNumber, response, "success")
}

func (h *WhatsAppHandler) reply(c *gin.Context, phone, message, status string) {
	if err := h.replier.SendTextMessage(c.Request.Context(), phone, message); err != nil {
		logging.FromContext(c.Request.Context(), zap.NewNop()).Warn("whatsapp reply failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Failed to send message", Code: "gateway_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *WhatsAppHandler) processCommand(ctx context.Context, employee *models.Employee, message string) string {
	parts := strings.Fields(message)
	if len(parts) == 0 {
		return "Empty message. Type /help for available commands."
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help":
		return h.helpMessage(employee.Role)
	case "/stage":
		return h.showStage(ctx, args)
	case "/next":
		return h.nextStage(ctx, employee, args)
	case "/done":
		return h.completeWorkUnit(ctx, args)
	case "/recompute":
		if employee.Role != models.RoleManager {
			return "Only managers can recompute order status."
		}
		return h.recompute(ctx, args)
	default:
		return "Unknown command. Type /help for available commands."
	}
}

func (h *WhatsAppHandler) helpMessage(role models.EmployeeRole) string {
	help := `Available commands:
/stage [order_id] - Show the order's current stage
/next [order_id] [notes] - Move the order to its next stage
/done [work_unit_id] - Mark a booked work unit as completed
/help - Show this help message`
	if role == models.RoleManager {
		help += "\n/recompute [order_id] - Recompute the order status"
	}
	return help
}

func (h *WhatsAppHandler) showStage(ctx context.Context, args []string) string {
	orderID, ok := parseIDArg(args)
	if !ok {
		return "Usage: /stage [order_id]"
	}
	progress, err := h.stageService.GetProgress(ctx, orderID)
	if err != nil {
		return describeError(err)
	}
	if progress.Stage == nil {
		return fmt.Sprintf("Order %d has not started yet.", orderID)
	}
	return fmt.Sprintf("Order %d: %s - %s (%d%%)", orderID, *progress.Stage, progress.Description, progress.CompletionPercentage)
}

func (h *WhatsAppHandler) nextStage(ctx context.Context, employee *models.Employee, args []string) string {
	orderID, ok := parseIDArg(args)
	if !ok {
		return "Usage: /next [order_id] [notes]"
	}
	notes := strings.Join(args[1:], " ")
	entry, err := h.stageService.TransitionToNextStage(ctx, orderID, &employee.ID, notes)
	if err != nil {
		return describeError(err)
	}
	return fmt.Sprintf("Order %d moved to %s.", orderID, entry.Stage)
}

func (h *WhatsAppHandler) completeWorkUnit(ctx context.Context, args []string) string {
	unitID, ok := parseIDArg(args)
	if !ok {
		return "Usage: /done [work_unit_id]"
	}
	unit, err := h.schedulingService.GetScheduledWorkUnit(ctx, unitID)
	if err != nil {
		return describeError(err)
	}
	orderID, booked := unit.State().OrderID()
	if !booked || unit.Status != models.WorkUnitBooked {
		return fmt.Sprintf("Work unit %d is %s, only booked units can be completed.", unitID, unit.Status)
	}

	_, err = h.schedulingService.UpdateScheduledWorkUnit(ctx, unitID, services.WorkUnitRequest{
		DailyScheduleID:      unit.DailyScheduleID,
		TimeSlotDefinitionID: unit.TimeSlotDefinitionID,
		OrderID:              &orderID,
		Status:               models.WorkUnitCompleted,
	})
	if err != nil {
		return describeError(err)
	}
	return fmt.Sprintf("Work unit %d for order %d marked as completed.", unitID, orderID)
}

func (h *WhatsAppHandler) recompute(ctx context.Context, args []string) string {
	orderID, ok := parseIDArg(args)
	if !ok {
		return "Usage: /recompute [order_id]"
	}
	order, err := h.schedulingService.RecomputeOrderStatus(ctx, orderID)
	if err != nil {
		return describeError(err)
	}
	return fmt.Sprintf("Order %d status: %s", orderID, order.Status)
}

func parseIDArg(args []string) (uint, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func describeError(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConflict):
		return "Cannot do that: " + err.Error()
	case errors.Is(err, services.ErrConcurrentUpdate):
		return "Someone else is updating this order, please try again."
	default:
		return "Something went wrong, please try again later."
	}
}
