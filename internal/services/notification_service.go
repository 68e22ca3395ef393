package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"decal_manager/internal/models"
	"decal_manager/pkg/whatsapp"

	"go.uber.org/zap"
)

// Notifier tells customers about progress on their order. Calls happen after commit and
// must not fail the operation that triggered them.
type Notifier interface {
	StageChanged(ctx context.Context, order *models.Order, stage models.StageDefinition)
	OrderCompleted(ctx context.Context, order *models.Order)
}

// StageCache holds the latest stage per order outside the database.
type StageCache interface {
	SetOrderStage(ctx context.Context, orderID uint, stage string, ttl time.Duration) error
	GetOrderStage(ctx context.Context, orderID uint) (string, error)
	DeleteOrderStage(ctx context.Context, orderID uint) error
}

type NoopNotifier struct{}

func (NoopNotifier) StageChanged(context.Context, *models.Order, models.StageDefinition) {}
func (NoopNotifier) OrderCompleted(context.Context, *models.Order) {}

type messageSender interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

type whatsappNotifier struct {
	client  messageSender
	logger  *zap.Logger
	timeout time.Duration
}

func NewWhatsAppNotifier(client *whatsapp.Client, logger *zap.Logger) Notifier {
	return newWhatsAppNotifier(client, logger)
}

func newWhatsAppNotifier(client messageSender, logger *zap.Logger) *whatsappNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &whatsappNotifier{client: client, logger: logger, timeout: 10 * time.Second}
}

func (n *whatsappNotifier) StageChanged(ctx context.Context, order *models.Order, stage models.StageDefinition) {
	message := fmt.Sprintf("Order %s: %s (%d%% done).", order.OrderNumber, stage.Description, stage.CompletionPercentage)
	n.send(ctx, order, message)
}

func (n *whatsappNotifier) OrderCompleted(ctx context.Context, order *models.Order) {
	message := fmt.Sprintf("Order %s: all installation work is finished. Total due: %s.", order.OrderNumber, order.TotalAmount.StringFixed(2))
	n.send(ctx, order, message)
}

func (n *whatsappNotifier) send(ctx context.Context, order *models.Order, message string) {
	phone := strings.TrimSpace(order.CustomerPhone)
	if phone == "" {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.client.SendTextMessage(sendCtx, phone, message); err != nil {
		n.logger.Warn("customer notification failed",
			zap.Uint("order_id", order.ID),
			zap.Error(err),
		)
	}
}
