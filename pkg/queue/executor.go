package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/messaging"
	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/signing"
)

// PlanExecutor handles execute_plan control envelopes: it loads the merged
// proposal's plan from the event store, re-verifies its signature and fans
// the plan out into one queue envelope per action. The per-action envelopes
// then pass through the compliance rails like any other send.
type PlanExecutor struct {
	queue  *Queue
	events eventstore.Store
	secret string
	logger *slog.Logger
}

// NewPlanExecutor creates the execute_plan adapter. An empty secret disables
// signature re-verification, which is only acceptable in development.
func NewPlanExecutor(queue *Queue, events eventstore.Store, secret string) *PlanExecutor {
	return &PlanExecutor{
		queue:  queue,
		events: events,
		secret: secret,
		logger: slog.With("adapter", "plan_executor"),
	}
}

// Execute fans out the plan behind a merged PR. Errors return to the worker
// for retry; a tampered signature therefore retries until dead-lettered,
// leaving the failure visible in the DLQ.
func (e *PlanExecutor) Execute(ctx context.Context, envelope models.Envelope) (map[string]any, error) {
	appointmentID := envelope.AppointmentID()
	if appointmentID == "" {
		return nil, errors.New("execute_plan envelope has no appointment_id")
	}

	plan, err := e.loadPlan(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if e.secret != "" && !signing.VerifySignature(plan, e.secret) {
		return nil, fmt.Errorf("plan signature verification failed for appointment %s", appointmentID)
	}

	toNumber, appointmentDate := e.resolveContact(ctx, appointmentID)

	actions, _ := plan["actions"].([]any)
	planID, _ := plan["plan_id"].(string)

	enqueued := 0
	for _, raw := range actions {
		action, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		template, _ := action["template"].(string)
		actionEnvelope := models.Envelope{
			"action_type":    action["action_type"],
			"appointment_id": appointmentID,
			"patient_id":     action["patient_id"],
			"channel":        action["channel"],
			"template":       template,
			"to_number":      toNumber,
			"message":        messaging.RenderTemplate(template, appointmentDate),
			"scheduled_at":   action["scheduled_at"],
		}
		if _, err := e.queue.Enqueue(ctx, actionEnvelope); err != nil {
			return nil, fmt.Errorf("failed to enqueue plan action: %w", err)
		}
		enqueued++
	}

	e.logger.Info("Plan fanned out",
		"appointment_id", appointmentID,
		"plan_id", planID,
		"actions_enqueued", enqueued)

	return map[string]any{
		"adapter":          "plan_executor",
		"status":           "executed",
		"plan_id":          planID,
		"actions_enqueued": enqueued,
	}, nil
}

// loadPlan fetches the newest signed proposal for the appointment, falling
// back to the unsigned proposal_created event when signing never ran.
func (e *PlanExecutor) loadPlan(ctx context.Context, appointmentID string) (map[string]any, error) {
	for _, eventType := range []string{models.EventProposalSigned, models.EventProposalCreated} {
		events, err := e.events.List(ctx, eventstore.Filter{
			AggregateID: appointmentID,
			EventType:   eventType,
			Limit:       1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load proposal for appointment %s: %w", appointmentID, err)
		}
		if len(events) == 0 {
			continue
		}
		plan, ok := events[0].Payload["plan"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s event for appointment %s carries no plan", eventType, appointmentID)
		}
		return plan, nil
	}
	return nil, fmt.Errorf("no proposal found for appointment %s", appointmentID)
}

// resolveContact pulls the patient phone number and appointment time from
// the original appointment_received event. Missing contact details pass
// through empty; the provider adapter reports them as failed sends.
func (e *PlanExecutor) resolveContact(ctx context.Context, appointmentID string) (toNumber, appointmentDate string) {
	events, err := e.events.List(ctx, eventstore.Filter{
		AggregateID: appointmentID,
		EventType:   models.EventAppointmentReceived,
		Limit:       1,
	})
	if err != nil || len(events) == 0 {
		e.logger.Warn("No appointment_received event, sending without contact details",
			"appointment_id", appointmentID)
		return "", ""
	}

	payload := events[0].Payload
	toNumber, _ = payload["patient_phone"].(string)
	appointmentDate, _ = payload["scheduled_at"].(string)
	return toNumber, appointmentDate
}
