package models

// Action types produced by the revenue agent. ActionTypeExecutePlan is the
// control envelope the merge webhook enqueues; the rest are channel-bound
// patient contacts.
const (
	ActionTypeSendReminder     = "send_reminder"
	ActionTypeSendConfirmation = "send_confirmation"
	ActionTypeReschedule       = "reschedule"
	ActionTypeExecutePlan      = "execute_plan"
)

// Messaging channels.
const (
	ChannelSMS      = "sms"
	ChannelWhatsapp = "whatsapp"
	ChannelEmail    = "email"
)

// Action is a single channel-bound patient-contact operation. HoursBefore is
// the offset the revenue agent emits; the orchestrator resolves it into the
// absolute ScheduledAt before the plan is built. Immutable once built.
type Action struct {
	ActionType    string `json:"action_type"`
	Channel       string `json:"channel"`
	Template      string `json:"template"`
	HoursBefore   int    `json:"hours_before,omitempty"`
	ScheduledAt   string `json:"scheduled_at"`
	PatientID     string `json:"patient_id"`
	AppointmentID string `json:"appointment_id"`
}

// ActionSequence is the revenue agent's output: ordered actions plus the
// estimated show-rate improvement.
type ActionSequence struct {
	Actions      []Action `json:"actions"`
	ExpectedLift float64  `json:"expected_lift"`
}
