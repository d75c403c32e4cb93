package services

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julian-najas/cacp/pkg/eventstore"
)

const statusCallbackURL = "https://cacp.example.com/webhook/twilio-status"

func twilioSign(url string, params map[string]string, authToken string) string {
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
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestDeliveryStatusRecordsDelivered(t *testing.T) {
	events := eventstore.NewMemoryStore()
	service := NewDeliveryStatusService("", events, nil)

	outcome, err := service.HandleStatus(t.Context(), StatusCallback{
		URL: statusCallbackURL,
		Params: map[string]string{
			"MessageSid":    "SM_TEST_123",
			"MessageStatus": "delivered",
			"To":            "+34600111222",
		},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, "delivered", outcome.Status)

	stored, err := events.List(t.Context(), eventstore.Filter{AggregateID: "SM_TEST_123"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "sms_delivered", stored[0].EventType)
}

func TestDeliveryStatusCarriesErrorCode(t *testing.T) {
	events := eventstore.NewMemoryStore()
	service := NewDeliveryStatusService("", events, nil)

	_, err := service.HandleStatus(t.Context(), StatusCallback{
		URL: statusCallbackURL,
		Params: map[string]string{
			"MessageSid":    "SM_FAIL_456",
			"MessageStatus": "failed",
			"To":            "+34600111222",
			"ErrorCode":     "30003",
		},
	})
	require.NoError(t, err)

	stored, err := events.List(t.Context(), eventstore.Filter{AggregateID: "SM_FAIL_456"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "sms_failed", stored[0].EventType)
	assert.Equal(t, "30003", stored[0].Payload["error_code"])
}

func TestDeliveryStatusIgnoresUntracked(t *testing.T) {
	events := eventstore.NewMemoryStore()
	service := NewDeliveryStatusService("", events, nil)

	outcome, err := service.HandleStatus(t.Context(), StatusCallback{
		URL: statusCallbackURL,
		Params: map[string]string{
			"MessageSid":    "SM_OTHER",
			"MessageStatus": "accepted",
			"To":            "+34600111222",
		},
	})
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "untracked_status", outcome.Reason)

	stored, err := events.List(t.Context(), eventstore.Filter{AggregateID: "SM_OTHER"})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDeliveryStatusIgnoresMissingSid(t *testing.T) {
	service := NewDeliveryStatusService("", eventstore.NewMemoryStore(), nil)

	outcome, err := service.HandleStatus(t.Context(), StatusCallback{
		URL:    statusCallbackURL,
		Params: map[string]string{"MessageStatus": "delivered"},
	})
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
}

func TestDeliveryStatusHashesDestination(t *testing.T) {
	events := eventstore.NewMemoryStore()
	service := NewDeliveryStatusService("", events, nil)

	_, err := service.HandleStatus(t.Context(), StatusCallback{
		URL: statusCallbackURL,
		Params: map[string]string{
			"MessageSid":    "SM_HASH_CHECK",
			"MessageStatus": "sent",
			"To":            "+34600111222",
		},
	})
	require.NoError(t, err)

	stored, err := events.List(t.Context(), eventstore.Filter{AggregateID: "SM_HASH_CHECK"})
	require.NoError(t, err)
	require.Len(t, stored, 1)

	toHash, ok := stored[0].Payload["to_hash"].(string)
	require.True(t, ok)
	assert.Len(t, toHash, 16)
	assert.NotContains(t, toHash, "+34600111222")
	_, hasTo := stored[0].Payload["To"]
	assert.False(t, hasTo, "raw destination must never be stored")
}

func TestDeliveryStatusVerifiesSignature(t *testing.T) {
	const authToken = "twilio-auth-token"
	events := eventstore.NewMemoryStore()
	service := NewDeliveryStatusService(authToken, events, nil)

	params := map[string]string{
		"MessageSid":    "SM_SIGNED_1",
		"MessageStatus": "delivered",
		"To":            "+34600111222",
	}

	outcome, err := service.HandleStatus(t.Context(), StatusCallback{
		URL:       statusCallbackURL,
		Signature: twilioSign(statusCallbackURL, params, authToken),
		Params:    params,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
}

func TestDeliveryStatusRejectsBadSignature(t *testing.T) {
	service := NewDeliveryStatusService("twilio-auth-token", eventstore.NewMemoryStore(), nil)

	params := map[string]string{
		"MessageSid":    "SM_SIGNED_2",
		"MessageStatus": "delivered",
	}

	_, err := service.HandleStatus(t.Context(), StatusCallback{
		URL:       statusCallbackURL,
		Signature: "bogus",
		Params:    params,
	})
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestDeliveryStatusRejectsMissingSignature(t *testing.T) {
	service := NewDeliveryStatusService("twilio-auth-token", eventstore.NewMemoryStore(), nil)

	_, err := service.HandleStatus(t.Context(), StatusCallback{
		URL: statusCallbackURL,
		Params: map[string]string{
			"MessageSid":    "SM_SIGNED_3",
			"MessageStatus": "delivered",
		},
	})
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestDeliveryStatusSignatureCoversParams(t *testing.T) {
	const authToken = "twilio-auth-token"
	service := NewDeliveryStatusService(authToken, eventstore.NewMemoryStore(), nil)

	params := map[string]string{
		"MessageSid":    "SM_SIGNED_4",
		"MessageStatus": "delivered",
	}
	signature := twilioSign(statusCallbackURL, params, authToken)

	// Tamper with a parameter after signing.
	params["MessageStatus"] = "failed"

	_, err := service.HandleStatus(t.Context(), StatusCallback{
		URL:       statusCallbackURL,
		Signature: signature,
		Params:    params,
	})
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}
