package inventory

import (
	"context"
	"fmt"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// AlertNotifier delivers alert notifications to operators
type AlertNotifier interface {
	SendAlert(ctx context.Context, alert *inventory.AlertEvent) error
}

// AlertRaisedHandler forwards raised alerts from the event bus to a notifier
type AlertRaisedHandler struct {
	notifier AlertNotifier
	logger   *zap.Logger
}

// NewAlertRaisedHandler creates a new handler for alert raised events
func NewAlertRaisedHandler(notifier AlertNotifier, logger *zap.Logger) *AlertRaisedHandler {
	return &AlertRaisedHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *AlertRaisedHandler) EventTypes() []string {
	return []string{inventory.EventTypeAlertRaised}
}

// Handle processes an alert raised event
func (h *AlertRaisedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	alertEvent, ok := event.(*inventory.AlertEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", inventory.EventTypeAlertRaised),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s", inventory.EventTypeAlertRaised, event.EventType())
	}
	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendAlert(ctx, alertEvent); err != nil {
		// Notification failure shouldn't fail the event handling
		h.logger.Error("failed to send stock alert notification",
			zap.String("alert_id", alertEvent.AlertID.String()),
			zap.Error(err),
		)
	}
	return nil
}

var _ shared.EventHandler = (*AlertRaisedHandler)(nil)

// LoggingAlertNotifier writes alerts to the log
type LoggingAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingAlertNotifier creates a new logging notifier
func NewLoggingAlertNotifier(logger *zap.Logger) *LoggingAlertNotifier {
	return &LoggingAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingAlertNotifier) SendAlert(_ context.Context, alert *inventory.AlertEvent) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", string(alert.AlertType)),
		zap.String("variant_id", alert.VariantID.String()),
		zap.String("size_id", alert.SizeID.String()),
		zap.Int64("available", alert.Available),
		zap.Int64("threshold", alert.Threshold),
		zap.String("message", alert.Message),
	)
	return nil
}
