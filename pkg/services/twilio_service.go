package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"log/slog"
	"sort"
	"strings"

	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/metrics"
	"github.com/julian-najas/cacp/pkg/models"
)

// trackableStatuses are the Twilio delivery states worth recording. Anything
// else (accepted, sending, read receipts) is dropped.
var trackableStatuses = map[string]bool{
	"queued":      true,
	"sent":        true,
	"delivered":   true,
	"undelivered": true,
	"failed":      true,
}

// StatusCallback is one parsed delivery-status request.
type StatusCallback struct {
	URL       string            // full request URL, as Twilio signed it
	Signature string            // X-Twilio-Signature header
	Params    map[string]string // form parameters
}

// StatusOutcome reports how a callback was handled.
type StatusOutcome struct {
	Accepted bool
	Status   string
	Reason   string
}

// DeliveryStatusService converts Twilio status callbacks into sms_* events.
// The raw destination number never reaches the event store; only a hash
// prefix is kept for correlation.
type DeliveryStatusService struct {
	authToken string
	events    eventstore.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDeliveryStatusService creates the callback processor. An empty auth
// token disables signature verification; metrics may be nil.
func NewDeliveryStatusService(authToken string, events eventstore.Store, m *metrics.Metrics) *DeliveryStatusService {
	return &DeliveryStatusService{
		authToken: authToken,
		events:    events,
		metrics:   m,
		logger:    slog.Default().With("component", "delivery_status"),
	}
}

// HandleStatus validates and records one callback. Returns
// ErrSignatureInvalid when a token is configured and the signature fails.
func (s *DeliveryStatusService) HandleStatus(ctx context.Context, cb StatusCallback) (*StatusOutcome, error) {
	if s.authToken != "" {
		if !verifyTwilioSignature(cb.URL, cb.Params, cb.Signature, s.authToken) {
			s.logger.Warn("Twilio signature verification failed")
			return nil, ErrSignatureInvalid
		}
	}

	messageSID := cb.Params["MessageSid"]
	status := cb.Params["MessageStatus"]
	if messageSID == "" || !trackableStatuses[status] {
		return &StatusOutcome{Accepted: false, Reason: "untracked_status"}, nil
	}

	payload := map[string]any{
		"message_sid": messageSID,
		"status":      status,
		"to_hash":     consent.HashPII(cb.Params["To"]),
	}
	if errorCode := cb.Params["ErrorCode"]; errorCode != "" {
		payload["error_code"] = errorCode
	}

	// The message SID is the aggregate: delivery callbacks carry no
	// appointment reference.
	s.emit(ctx, messageSID, "sms_"+status, payload)
	if s.metrics != nil {
		s.metrics.WebhookDeliveries.WithLabelValues(status).Inc()
	}

	s.logger.Info("Delivery status recorded", "message_sid", messageSID, "status", status)
	return &StatusOutcome{Accepted: true, Status: status}, nil
}

func (s *DeliveryStatusService) emit(ctx context.Context, aggregateID, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Append(ctx, models.Event{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
	}); err != nil {
		s.logger.Warn("Failed to append event", "event_type", eventType, "error", err)
	}
}

// verifyTwilioSignature checks X-Twilio-Signature: the full URL plus every
// form parameter concatenated key-then-value in key order, HMAC-SHA1 under
// the account auth token, base64.
func verifyTwilioSignature(url string, params map[string]string, signature, authToken string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var data strings.Builder
	data.WriteString(url)
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(params[key])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
