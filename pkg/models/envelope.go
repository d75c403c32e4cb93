package models

import "encoding/json"

// Envelope keys the worker promotes. Everything else rides through opaque.
const (
	EnvelopeKeyActionType    = "action_type"
	EnvelopeKeyAppointmentID = "appointment_id"
	EnvelopeKeyPatientID     = "patient_id"
	EnvelopeKeyChannel       = "channel"
	EnvelopeKeyRetryCount    = "_retry_count"
)

// Envelope is a queue entry: an opaque JSON object with a handful of promoted
// fields. Envelopes are heterogeneous (channel-bound sends, plan fan-out
// jobs), so the map representation preserves unknown keys across the
// enqueue/dequeue round trip.
type Envelope map[string]any

// ParseEnvelope decodes a JSON queue entry.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode serializes the envelope for the queue.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(map[string]any(e))
}

// String returns the named field when it holds a string, or "".
func (e Envelope) String(key string) string {
	if v, ok := e[key].(string); ok {
		return v
	}
	return ""
}

// ActionType returns the envelope's action type, or "" when absent.
func (e Envelope) ActionType() string { return e.String(EnvelopeKeyActionType) }

// AppointmentID returns the envelope's appointment id, or "" when absent.
func (e Envelope) AppointmentID() string { return e.String(EnvelopeKeyAppointmentID) }

// PatientID returns the envelope's patient id, or "" when absent.
func (e Envelope) PatientID() string { return e.String(EnvelopeKeyPatientID) }

// Channel returns the envelope's channel, or "" for control envelopes.
func (e Envelope) Channel() string { return e.String(EnvelopeKeyChannel) }

// RetryCount returns the worker-internal retry counter. JSON numbers decode
// as float64; a missing or malformed counter reads as zero.
func (e Envelope) RetryCount() int {
	switch v := e[EnvelopeKeyRetryCount].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// SetRetryCount updates the worker-internal retry counter.
func (e Envelope) SetRetryCount(n int) {
	e[EnvelopeKeyRetryCount] = n
}
