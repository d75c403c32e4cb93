package messaging

import (
	"context"
	"log/slog"

	"github.com/julian-najas/cacp/pkg/models"
)

// NoopAdapter acknowledges actions without contacting any provider. It is
// the default adapter when no messaging provider is configured, which keeps
// demos and development environments from sending real messages.
type NoopAdapter struct{}

// NewNoopAdapter creates a no-op delivery adapter.
func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{}
}

// Execute logs the action and reports it as executed.
func (a *NoopAdapter) Execute(ctx context.Context, envelope models.Envelope) (map[string]any, error) {
	slog.Info("Noop adapter executed action",
		"action_type", envelope.ActionType(),
		"appointment_id", envelope.AppointmentID(),
		"channel", envelope.Channel())

	return map[string]any{
		"adapter":     "noop",
		"action_type": envelope.ActionType(),
		"status":      "executed",
	}, nil
}
