package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/models"
)

// ConsentService handles operator-driven consent changes. The worker's
// consent rail reads the same store, so a revocation takes effect on the
// next dequeued action.
type ConsentService struct {
	store  consent.Store
	events eventstore.Store
	logger *slog.Logger
}

// NewConsentService creates a new ConsentService. events may be nil
// (disabled).
func NewConsentService(store consent.Store, events eventstore.Store) *ConsentService {
	return &ConsentService{
		store:  store,
		events: events,
		logger: slog.Default().With("component", "consent_service"),
	}
}

// Grant records consent for each channel and appends the audit event.
func (s *ConsentService) Grant(ctx context.Context, patientID string, channels []string) error {
	if err := validateConsentInput(patientID, channels); err != nil {
		return err
	}
	for _, channel := range channels {
		if err := s.store.Grant(ctx, patientID, channel); err != nil {
			return fmt.Errorf("grant consent for channel %s: %w", channel, err)
		}
	}
	s.emit(ctx, patientID, models.EventConsentGranted, channels)
	return nil
}

// Bootstrap grants the channels implied by an ingested appointment's consent
// flags: a phone number grants sms, the whatsapp flag grants whatsapp.
// Appointments without consent_given are left untouched.
func (s *ConsentService) Bootstrap(ctx context.Context, appt models.Appointment) error {
	return consent.BootstrapFromAppointment(ctx, s.store, appt)
}

// Revoke withdraws consent for each channel and appends the audit event.
// Revoking channels without an active grant is a no-op.
func (s *ConsentService) Revoke(ctx context.Context, patientID string, channels []string) error {
	if err := validateConsentInput(patientID, channels); err != nil {
		return err
	}
	for _, channel := range channels {
		if err := s.store.Revoke(ctx, patientID, channel); err != nil {
			return fmt.Errorf("revoke consent for channel %s: %w", channel, err)
		}
	}
	s.emit(ctx, patientID, models.EventConsentRevoked, channels)
	return nil
}

func validateConsentInput(patientID string, channels []string) error {
	if patientID == "" {
		return NewValidationError("patient_id", "must not be empty")
	}
	if len(channels) == 0 {
		return NewValidationError("channels", "at least one channel required")
	}
	for _, channel := range channels {
		switch channel {
		case models.ChannelSMS, models.ChannelWhatsapp, models.ChannelEmail:
		default:
			return NewValidationError("channels", fmt.Sprintf("unknown channel %q", channel))
		}
	}
	return nil
}

func (s *ConsentService) emit(ctx context.Context, patientID, eventType string, channels []string) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Append(ctx, models.Event{
		AggregateID: patientID,
		EventType:   eventType,
		Payload: map[string]any{
			"patient_id": patientID,
			"channels":   channels,
		},
	}); err != nil {
		s.logger.Warn("Failed to append event", "event_type", eventType, "error", err)
	}
}
