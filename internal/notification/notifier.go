// Package notification delivers alerts for closed orders to external
// channels (webhooks, logs).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"fxengine/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// ErrThrottled is returned when a notifier drops an alert to respect its rate limit.
var ErrThrottled = errors.New("notification: throttled")

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to a structured logger (useful for development).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.InfoContext(ctx, "alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// OrderAlert describes a closed order. Take-profits are INFO, stop-losses WARNING.
func OrderAlert(symbol string, o model.Order, balance decimal.Decimal) Alert {
	level := AlertInfo
	if o.Status == model.StatusCloseSL {
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("%s %s %s", symbol, o.Side, o.Status),
		Message: fmt.Sprintf("open %s close %s profit %d swap %s held %s balance %s",
			o.OpenPrice, o.ClosePrice, o.CurrentProfit, o.Swap.StringFixed(2), o.Elapsed, balance.StringFixed(2)),
	}
}

// OrderAlerts adapts a Notifier into an order sink: one alert per closed order.
type OrderAlerts struct {
	N Notifier
}

// RecordClosed sends an alert for every order. Throttled alerts are not errors.
func (a OrderAlerts) RecordClosed(ctx context.Context, symbol string, orders []model.Order, balance decimal.Decimal) error {
	var errs []error
	for _, o := range orders {
		if err := a.N.Send(ctx, OrderAlert(symbol, o, balance)); err != nil && !errors.Is(err, ErrThrottled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
