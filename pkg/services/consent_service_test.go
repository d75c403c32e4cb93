package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/models"
)

func TestConsentServiceGrant(t *testing.T) {
	store := consent.NewInMemoryStore()
	events := eventstore.NewMemoryStore()
	service := NewConsentService(store, events)

	err := service.Grant(t.Context(), "PAT-001", []string{models.ChannelSMS, models.ChannelWhatsapp})
	require.NoError(t, err)

	for _, channel := range []string{models.ChannelSMS, models.ChannelWhatsapp} {
		granted, err := store.HasConsent(t.Context(), "PAT-001", channel)
		require.NoError(t, err)
		assert.True(t, granted, channel)
	}

	stored, err := events.List(t.Context(), eventstore.Filter{AggregateID: "PAT-001"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.EventConsentGranted, stored[0].EventType)
	assert.Equal(t, []string{models.ChannelSMS, models.ChannelWhatsapp}, stored[0].Payload["channels"])
}

func TestConsentServiceRevoke(t *testing.T) {
	store := consent.NewInMemoryStore()
	events := eventstore.NewMemoryStore()
	service := NewConsentService(store, events)

	require.NoError(t, service.Grant(t.Context(), "PAT-001", []string{models.ChannelSMS}))
	require.NoError(t, service.Revoke(t.Context(), "PAT-001", []string{models.ChannelSMS}))

	granted, err := store.HasConsent(t.Context(), "PAT-001", models.ChannelSMS)
	require.NoError(t, err)
	assert.False(t, granted)

	stored, err := events.List(t.Context(), eventstore.Filter{
		AggregateID: "PAT-001",
		EventType:   models.EventConsentRevoked,
	})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestConsentServiceRevokeWithoutGrant(t *testing.T) {
	service := NewConsentService(consent.NewInMemoryStore(), eventstore.NewMemoryStore())

	err := service.Revoke(t.Context(), "PAT-002", []string{models.ChannelSMS})
	assert.NoError(t, err, "revoking absent consent is a no-op")
}

func TestConsentServiceValidation(t *testing.T) {
	service := NewConsentService(consent.NewInMemoryStore(), eventstore.NewMemoryStore())

	tests := []struct {
		name      string
		patientID string
		channels  []string
	}{
		{name: "empty patient", patientID: "", channels: []string{models.ChannelSMS}},
		{name: "no channels", patientID: "PAT-001", channels: nil},
		{name: "unknown channel", patientID: "PAT-001", channels: []string{"pigeon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Grant(t.Context(), tt.patientID, tt.channels)
			assert.True(t, IsValidationError(err), "got %v", err)

			err = service.Revoke(t.Context(), tt.patientID, tt.channels)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}
}
