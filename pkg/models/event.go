package models

import "time"

// Event types emitted across the pipeline. The event store is append-only;
// these names are part of the persisted contract and must not change.
const (
	EventAppointmentReceived    = "appointment_received"
	EventAppointmentIngested    = "appointment_ingested"
	EventAppointmentConfirmed   = "appointment_confirmed"
	EventAppointmentRescheduled = "appointment_rescheduled"
	EventNoShowRecorded         = "no_show_recorded"

	EventRiskScored      = "risk_scored"
	EventProposalCreated = "proposal_created"
	EventProposalSigned  = "proposal_signed"

	EventPROpened = "pr_opened"
	EventPRMerged = "pr_merged"

	EventActionExecuted       = "action_executed"
	EventActionFailed         = "action_failed"
	EventActionBlocked        = "action_blocked"
	EventActionRetryScheduled = "action_retry_scheduled"
	EventActionDeadLettered   = "action_dead_lettered"

	EventConsentGranted = "consent_granted"
	EventConsentRevoked = "consent_revoked"

	// Provider delivery receipts, one per trackable message status.
	EventSMSQueued      = "sms_queued"
	EventSMSSent        = "sms_sent"
	EventSMSDelivered   = "sms_delivered"
	EventSMSUndelivered = "sms_undelivered"
	EventSMSFailed      = "sms_failed"
)

// Event is a single append-only record. Payload stays schemaless: each event
// type carries its own shape and consumers pick out the keys they need.
type Event struct {
	EventID        string         `json:"event_id"`
	AggregateID    string         `json:"aggregate_id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload"`
	Actor          string         `json:"actor"`
	CreatedAt      time.Time      `json:"created_at"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}
