package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/models"
)

func TestGrantConsent(t *testing.T) {
	f := newServerFixture(t)

	rec := f.postJSON("/consent/grant", map[string]any{
		"patient_id": "PAT-C1",
		"channels":   []string{"sms", "whatsapp"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "granted", body["status"])
	assert.Equal(t, "PAT-C1", body["patient_id"])

	ok, err := f.consents.HasConsent(context.Background(), "PAT-C1", models.ChannelSMS)
	require.NoError(t, err)
	assert.True(t, ok)

	events, err := f.events.List(context.Background(), eventstore.Filter{AggregateID: "PAT-C1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventConsentGranted, events[0].EventType)
}

func TestRevokeConsent(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, f.consents.Grant(context.Background(), "PAT-C2", models.ChannelSMS))

	rec := f.postJSON("/consent/revoke", map[string]any{
		"patient_id": "PAT-C2",
		"channels":   []string{"sms"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "revoked", decodeBody(t, rec)["status"])

	ok, err := f.consents.HasConsent(context.Background(), "PAT-C2", models.ChannelSMS)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsentUnknownChannelRejected(t *testing.T) {
	f := newServerFixture(t)

	rec := f.postJSON("/consent/grant", map[string]any{
		"patient_id": "PAT-C3",
		"channels":   []string{"pigeon"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, CodeInvalidRequest, body["error_code"])
	assert.Contains(t, body["message"], "pigeon")
}

func TestConsentMissingFieldsRejected(t *testing.T) {
	f := newServerFixture(t)

	rec := f.postJSON("/consent/grant", map[string]any{})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeInvalidRequest, decodeBody(t, rec)["error_code"])
}
