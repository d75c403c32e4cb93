package e2e

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────────────────
// HTTP client helpers
// ────────────────────────────────────────────────────────────

// IngestAppointment posts an appointment and returns the parsed 202 response.
func (app *TestApp) IngestAppointment(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	return app.postJSON(t, "/ingest", body, http.StatusAccepted)
}

// PostMergedPR signs and posts a merged-PR webhook for an appointment's
// proposal and returns the parsed response.
func (app *TestApp) PostMergedPR(t *testing.T, deliveryID string, prNumber int, appointmentID string, expectedStatus int) map[string]any {
	t.Helper()
	body := mergedPRBody(t, prNumber, appointmentID, testRepo)
	return app.postWebhook(t, deliveryID, body, signWebhook(body), expectedStatus)
}

// postWebhook delivers a raw GitHub webhook body with the given signature.
func (app *TestApp) postWebhook(t *testing.T, deliveryID string, body []byte, signature string, expectedStatus int) map[string]any {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		app.BaseURL+"/webhook/github", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-GitHub-Delivery", deliveryID)
	req.Header.Set("X-Hub-Signature-256", signature)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST /webhook/github: unexpected status")

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// PostTwilioStatus posts a form-encoded delivery-status callback.
func (app *TestApp) PostTwilioStatus(t *testing.T, params url.Values) map[string]any {
	t.Helper()
	resp, err := http.PostForm(app.BaseURL+"/webhook/twilio-status", params)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode, "POST /webhook/twilio-status: unexpected status")

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// RevokeConsent withdraws consent for the given channels.
func (app *TestApp) RevokeConsent(t *testing.T, patientID string, channels ...string) {
	t.Helper()
	app.postJSON(t, "/consent/revoke", map[string]any{
		"patient_id": patientID,
		"channels":   channels,
	}, http.StatusOK)
}

// GrantConsent records consent for the given channels.
func (app *TestApp) GrantConsent(t *testing.T, patientID string, channels ...string) {
	t.Helper()
	app.postJSON(t, "/consent/grant", map[string]any{
		"patient_id": patientID,
		"channels":   channels,
	}, http.StatusOK)
}

// ReplayDLQ drains up to maxItems dead letters back onto the main queue and
// returns how many moved.
func (app *TestApp) ReplayDLQ(t *testing.T, maxItems int) int {
	t.Helper()
	resp := app.postJSON(t, "/admin/dlq/replay", map[string]any{"max_items": maxItems}, http.StatusOK)
	replayed, ok := resp["replayed"].(float64)
	require.True(t, ok, "replay response missing replayed count: %v", resp)
	return int(replayed)
}

func (app *TestApp) postJSON(t *testing.T, path string, body map[string]any, expectedStatus int) map[string]any {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		app.BaseURL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode, "POST %s: unexpected status, body %s", path, raw)

	var result map[string]any
	require.NoError(t, json.Unmarshal(raw, &result))
	return result
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]any {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// ────────────────────────────────────────────────────────────
// Audit trail helpers
// ────────────────────────────────────────────────────────────

// ListEvents fetches one aggregate's audit trail, optionally filtered by
// event type. Events come back newest first.
func (app *TestApp) ListEvents(t *testing.T, aggregateID, eventType string) []map[string]any {
	t.Helper()
	path := "/events?aggregate_id=" + url.QueryEscape(aggregateID)
	if eventType != "" {
		path += "&event_type=" + url.QueryEscape(eventType)
	}
	resp := app.getJSON(t, path, http.StatusOK)

	raw, _ := resp["events"].([]any)
	events := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			events = append(events, m)
		}
	}
	return events
}

// WaitForEvents polls the audit API until the aggregate carries at least want
// events of the given type, then returns them.
func (app *TestApp) WaitForEvents(t *testing.T, aggregateID, eventType string, want int) []map[string]any {
	t.Helper()
	var events []map[string]any
	require.Eventually(t, func() bool {
		events = app.ListEvents(t, aggregateID, eventType)
		return len(events) >= want
	}, 10*time.Second, 25*time.Millisecond,
		"aggregate %s never reached %d %s events", aggregateID, want, eventType)
	return events
}

// payloadOf unwraps one event's payload map.
func payloadOf(t *testing.T, event map[string]any) map[string]any {
	t.Helper()
	payload, ok := event["payload"].(map[string]any)
	require.True(t, ok, "event carries no payload: %v", event)
	return payload
}

// blockReasons counts action_blocked events by payload reason.
func blockReasons(t *testing.T, events []map[string]any) map[string]int {
	t.Helper()
	reasons := make(map[string]int)
	for _, event := range events {
		reason, _ := payloadOf(t, event)["reason"].(string)
		reasons[reason]++
	}
	return reasons
}

// ────────────────────────────────────────────────────────────
// Payload builders
// ────────────────────────────────────────────────────────────

// highRiskAppointment returns an ingest payload that scores high: repeat
// no-shows, a first visit, a far-out Monday evening slot, reachable over
// phone and whatsapp with consent given.
func highRiskAppointment(appointmentID, patientID string) map[string]any {
	return map[string]any{
		"appointment_id":    appointmentID,
		"patient_id":        patientID,
		"clinic_id":         "clinic-madrid-centro",
		"scheduled_at":      "2030-03-04T18:00:00Z",
		"treatment_type":    "orthodontics",
		"is_first_visit":    true,
		"previous_no_shows": 3,
		"patient_phone":     "+34600111222",
		"patient_whatsapp":  true,
		"consent_given":     true,
	}
}

// mergedPRBody builds the GitHub pull_request payload for a merged proposal
// PR. The body carries the appointment_id line the webhook parser reads.
func mergedPRBody(t *testing.T, prNumber int, appointmentID, repo string) []byte {
	t.Helper()
	payload := map[string]any{
		"action": "closed",
		"pull_request": map[string]any{
			"number":           prNumber,
			"merged":           true,
			"merge_commit_sha": fmt.Sprintf("%040x", prNumber),
			"title":            fmt.Sprintf("Messaging plan — %s", appointmentID),
			"body": strings.Join([]string{
				"Automated messaging proposal.",
				"",
				"appointment_id: " + appointmentID,
			}, "\n"),
		},
		"repository": map[string]any{"name": repo},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

// signWebhook computes the sha256=<hex> delivery signature over the body.
func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
