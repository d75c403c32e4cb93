package e2e

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/policy"
)

var hexSignature = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ────────────────────────────────────────────────────────────
// Pipeline: ingest through merge webhook to delivery.
// ────────────────────────────────────────────────────────────

func TestE2E_HighRiskPipeline(t *testing.T) {
	app := NewTestApp(t)

	// Ingest: repeat no-shows, first visit, Monday evening → high risk,
	// three-step sequence, signed proposal.
	resp := app.IngestAppointment(t, highRiskAppointment("APT-2030-0042", "PAT-0077"))
	assert.Equal(t, "high", resp["risk_level"])
	assert.InDelta(t, 0.685, resp["risk_score"], 1e-9)
	assert.EqualValues(t, 3, resp["actions_count"])
	assert.Equal(t, true, resp["compliant"])
	assert.Empty(t, resp["pr_url"])
	assert.Equal(t, "Proposal created", resp["message"])
	require.NotEmpty(t, resp["proposal_id"])

	// The decision trail is already on record.
	for _, eventType := range []string{
		models.EventAppointmentIngested,
		models.EventAppointmentReceived,
		models.EventRiskScored,
		models.EventProposalCreated,
		models.EventProposalSigned,
	} {
		events := app.ListEvents(t, "APT-2030-0042", eventType)
		require.Len(t, events, 1, "expected exactly one %s event", eventType)
	}

	// The signed proposal carries a verifiable hex signature.
	signed := app.ListEvents(t, "APT-2030-0042", models.EventProposalSigned)
	plan, ok := payloadOf(t, signed[0])["plan"].(map[string]any)
	require.True(t, ok, "proposal_signed carries no plan")
	signature, _ := plan["hmac_signature"].(string)
	assert.Regexp(t, hexSignature, signature)

	// Merge webhook: the human approval signal. The plan fans out into three
	// whatsapp sends; the dedup rail lets exactly one through.
	merged := app.PostMergedPR(t, "delivery-happy-1", 101, "APT-2030-0042", http.StatusAccepted)
	assert.Equal(t, "accepted", merged["status"])

	prEvents := app.WaitForEvents(t, "APT-2030-0042", models.EventPRMerged, 1)
	assert.EqualValues(t, 101, payloadOf(t, prEvents[0])["pr_number"])

	executed := app.WaitForEvents(t, "APT-2030-0042", models.EventActionExecuted, 2)
	blocked := app.WaitForEvents(t, "APT-2030-0042", models.EventActionBlocked, 2)

	// One execute_plan, one delivered send.
	types := make(map[string]int)
	for _, event := range executed {
		actionType, _ := payloadOf(t, event)["action_type"].(string)
		types[actionType]++
	}
	assert.Equal(t, 1, types[models.ActionTypeExecutePlan])
	assert.Equal(t, 2, len(executed))

	// The two same-channel siblings hit the dedup rail.
	assert.Equal(t, map[string]int{"duplicate_action": 2}, blockReasons(t, blocked))

	// The provider saw exactly one message, addressed and rendered.
	require.Equal(t, 1, app.Contact.SentCount())
	envelope := app.Contact.Sent()[0]
	assert.Equal(t, "APT-2030-0042", envelope.AppointmentID())
	assert.Equal(t, "PAT-0077", envelope.PatientID())
	assert.Equal(t, models.ChannelWhatsapp, envelope.Channel())
	assert.Equal(t, "+34600111222", envelope["to_number"])
	assert.NotEmpty(t, envelope["message"])
}

func TestE2E_RevokedConsentBlocksSends(t *testing.T) {
	app := NewTestApp(t)

	app.IngestAppointment(t, highRiskAppointment("APT-2030-0043", "PAT-0078"))

	// The patient withdraws whatsapp consent between proposal and merge.
	app.RevokeConsent(t, "PAT-0078", models.ChannelWhatsapp)
	app.WaitForEvents(t, "PAT-0078", models.EventConsentRevoked, 1)

	app.PostMergedPR(t, "delivery-revoked-1", 102, "APT-2030-0043", http.StatusAccepted)

	// The plan still executes; every send is held at the consent rail.
	blocked := app.WaitForEvents(t, "APT-2030-0043", models.EventActionBlocked, 3)
	assert.Equal(t, map[string]int{"no_consent": 3}, blockReasons(t, blocked))

	executed := app.WaitForEvents(t, "APT-2030-0043", models.EventActionExecuted, 1)
	require.Len(t, executed, 1)
	assert.Equal(t, models.ActionTypeExecutePlan, payloadOf(t, executed[0])["action_type"])

	assert.Zero(t, app.Contact.SentCount(), "revoked patient must not be messaged")
}

func TestE2E_DuplicateWebhookDelivery(t *testing.T) {
	app := NewTestApp(t)

	app.IngestAppointment(t, highRiskAppointment("APT-2030-0044", "PAT-0079"))

	app.PostMergedPR(t, "delivery-dup-1", 103, "APT-2030-0044", http.StatusAccepted)
	app.WaitForEvents(t, "APT-2030-0044", models.EventActionExecuted, 2)

	// GitHub redelivers the same delivery id: answered 200 duplicate, nothing
	// re-enqueued.
	replay := app.PostMergedPR(t, "delivery-dup-1", 103, "APT-2030-0044", http.StatusOK)
	assert.Equal(t, "duplicate", replay["status"])

	// A fresh delivery id for the same PR does re-enqueue the plan, but the
	// dedup markers hold: the fan-out blocks in full.
	fresh := app.PostMergedPR(t, "delivery-dup-2", 103, "APT-2030-0044", http.StatusAccepted)
	assert.Equal(t, "accepted", fresh["status"])

	blocked := app.WaitForEvents(t, "APT-2030-0044", models.EventActionBlocked, 5)
	assert.Equal(t, map[string]int{"duplicate_action": 5}, blockReasons(t, blocked))

	executed := app.WaitForEvents(t, "APT-2030-0044", models.EventActionExecuted, 3)
	assert.Len(t, executed, 3, "two plan executions, one delivered send")
	assert.Equal(t, 1, app.Contact.SentCount(), "redelivery must not message the patient twice")
}

func TestE2E_InvalidWebhookSignature(t *testing.T) {
	app := NewTestApp(t)

	app.IngestAppointment(t, highRiskAppointment("APT-2030-0045", "PAT-0080"))

	body := mergedPRBody(t, 104, "APT-2030-0045", testRepo)
	resp := app.postWebhook(t, "delivery-forged-1", body, "sha256=invalid", http.StatusUnauthorized)
	assert.Equal(t, "SIGNATURE_INVALID", resp["error_code"])

	// Nothing recorded, nothing queued.
	assert.Empty(t, app.ListEvents(t, "APT-2030-0045", models.EventPRMerged))
	depth, err := app.Queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestE2E_DeadLetterReplay(t *testing.T) {
	planAdapter := NewScriptedAdapter()
	app := NewTestApp(t, WithPlanAdapter(planAdapter), WithMaxRetries(1))

	// Fail the first execution and its single retry: the envelope
	// dead-letters.
	planAdapter.FailNext(2)

	app.IngestAppointment(t, highRiskAppointment("APT-2030-0046", "PAT-0081"))
	app.PostMergedPR(t, "delivery-dlq-1", 105, "APT-2030-0046", http.StatusAccepted)

	app.WaitForEvents(t, "APT-2030-0046", models.EventActionRetryScheduled, 1)
	app.WaitForEvents(t, "APT-2030-0046", models.EventActionDeadLettered, 1)
	failed := app.ListEvents(t, "APT-2030-0046", models.EventActionFailed)
	assert.Len(t, failed, 2)

	depth, err := app.Queue.DLQDepth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	// Operator replays the dead letter; the adapter has recovered.
	assert.Equal(t, 1, app.ReplayDLQ(t, 10))

	executed := app.WaitForEvents(t, "APT-2030-0046", models.EventActionExecuted, 1)
	assert.Equal(t, models.ActionTypeExecutePlan, payloadOf(t, executed[0])["action_type"])

	require.Eventually(t, func() bool {
		depth, err := app.Queue.DLQDepth(context.Background())
		return err == nil && depth == 0
	}, 5*time.Second, 25*time.Millisecond, "DLQ never drained after replay")
}

func TestE2E_QuietHoursHoldSends(t *testing.T) {
	// A 0-24 window is always inside quiet hours, whatever the wall clock.
	app := NewTestApp(t, WithQuietHours(0, 24))

	app.IngestAppointment(t, highRiskAppointment("APT-2030-0047", "PAT-0082"))
	app.PostMergedPR(t, "delivery-quiet-1", 106, "APT-2030-0047", http.StatusAccepted)

	blocked := app.WaitForEvents(t, "APT-2030-0047", models.EventActionBlocked, 3)
	assert.Equal(t, map[string]int{"quiet_hours": 3}, blockReasons(t, blocked))
	assert.Zero(t, app.Contact.SentCount())
}

func TestE2E_RateLimitCapsSends(t *testing.T) {
	app := NewTestApp(t, WithRateLimit(1))

	app.IngestAppointment(t, highRiskAppointment("APT-2030-0048", "PAT-0083"))
	app.PostMergedPR(t, "delivery-rate-1", 107, "APT-2030-0048", http.StatusAccepted)

	blocked := app.WaitForEvents(t, "APT-2030-0048", models.EventActionBlocked, 2)
	assert.Equal(t, map[string]int{"rate_limited": 2}, blockReasons(t, blocked))
	assert.Equal(t, 1, app.Contact.SentCount())
}

func TestE2E_PolicyDenyStopsProposal(t *testing.T) {
	app := NewTestApp(t, WithOPADecision(policy.DecisionDeny, "message_volume_exceeds_policy"))

	resp := app.IngestAppointment(t, highRiskAppointment("APT-2030-0049", "PAT-0084"))
	assert.Equal(t, false, resp["compliant"])
	assert.Equal(t, []any{"message_volume_exceeds_policy"}, resp["violations"])
	assert.Equal(t, "Proposal rejected by compliance", resp["message"])

	// The pipeline stops before a proposal exists: scored but never built,
	// signed or queued.
	assert.Len(t, app.ListEvents(t, "APT-2030-0049", models.EventRiskScored), 1)
	assert.Empty(t, app.ListEvents(t, "APT-2030-0049", models.EventProposalCreated))
	assert.Empty(t, app.ListEvents(t, "APT-2030-0049", models.EventProposalSigned))
}

func TestE2E_DeliveryStatusCallback(t *testing.T) {
	app := NewTestApp(t)

	resp := app.PostTwilioStatus(t, url.Values{
		"MessageSid":    {"SM-e2e-0001"},
		"MessageStatus": {"delivered"},
		"To":            {"+34600111222"},
	})
	assert.Equal(t, true, resp["accepted"])
	assert.Equal(t, "delivered", resp["status"])

	events := app.ListEvents(t, "SM-e2e-0001", models.EventSMSDelivered)
	require.Len(t, events, 1)
	payload := payloadOf(t, events[0])
	assert.Equal(t, "delivered", payload["status"])

	// Only a hash prefix of the destination number is kept.
	toHash, _ := payload["to_hash"].(string)
	assert.Len(t, toHash, 16)
	assert.NotContains(t, toHash, "+34")

	// Read receipts and other untracked statuses are dropped.
	ignored := app.PostTwilioStatus(t, url.Values{
		"MessageSid":    {"SM-e2e-0002"},
		"MessageStatus": {"read"},
	})
	assert.Equal(t, true, ignored["ignored"])
	assert.Empty(t, app.ListEvents(t, "SM-e2e-0002", ""))
}

func TestE2E_NoShowStatsProjection(t *testing.T) {
	app := NewTestApp(t)

	app.IngestAppointment(t, highRiskAppointment("APT-2030-0050", "PAT-0085"))

	stats := app.getJSON(t, "/stats/no-shows", http.StatusOK)
	assert.EqualValues(t, 1, stats["total_appointments"])
	assert.EqualValues(t, 0, stats["no_shows"])
	assert.EqualValues(t, 0, stats["no_show_rate"])
}

func TestE2E_Readiness(t *testing.T) {
	app := NewTestApp(t)

	// Liveness never depends on peers.
	health := app.getJSON(t, "/health", http.StatusOK)
	assert.Equal(t, "ok", health["status"])

	// Readiness fails closed: redis and the policy oracle answer, but no
	// Postgres handle is attached in the e2e wiring.
	ready := app.getJSON(t, "/ready", http.StatusServiceUnavailable)
	assert.Equal(t, false, ready["ready"])
	checks, ok := ready["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, checks["redis"])
	assert.Equal(t, true, checks["opa"])
	assert.Equal(t, false, checks["postgres"])
}
