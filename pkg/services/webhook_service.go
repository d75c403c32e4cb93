package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/queue"
)

// Delivery markers outlive GitHub's redelivery window.
const deliveryMarkerTTL = 24 * time.Hour

// Webhook outcome statuses returned to the sender.
const (
	WebhookAccepted  = "accepted"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

// GitHubDelivery carries one raw webhook request.
type GitHubDelivery struct {
	Event      string // X-GitHub-Event header
	DeliveryID string // X-GitHub-Delivery header
	Signature  string // X-Hub-Signature-256 header
	Body       []byte
}

// WebhookOutcome is the processed result of a delivery.
type WebhookOutcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WebhookService turns merged proposal PRs into execute_plan work. The merge
// of a PR in the GitOps config repo is the human approval signal; everything
// downstream of it is driven by the envelope enqueued here.
type WebhookService struct {
	secret      string
	repo        string
	environment string
	queue       *queue.Queue
	events      eventstore.Store
	logger      *slog.Logger
}

// NewWebhookService creates the GitHub webhook processor. events may be nil
// (disabled).
func NewWebhookService(settings *config.Settings, q *queue.Queue, events eventstore.Store) *WebhookService {
	return &WebhookService{
		secret:      settings.GitHubWebhookSecret,
		repo:        settings.GitHubRepo,
		environment: settings.Environment,
		queue:       q,
		events:      events,
		logger:      slog.Default().With("component", "webhook_service"),
	}
}

// pullRequestEvent is the subset of GitHub's pull_request payload we read.
type pullRequestEvent struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number         int    `json:"number"`
		Merged         bool   `json:"merged"`
		MergeCommitSHA string `json:"merge_commit_sha"`
		Title          string `json:"title"`
		Body           string `json:"body"`
	} `json:"pull_request"`
	Repository struct {
		Name string `json:"name"`
	} `json:"repository"`
}

// HandleGitHub verifies, deduplicates, filters and finally enqueues a
// delivery. Sentinel errors signal auth and parse failures; infrastructure
// errors (Redis down) are returned wrapped so the sender retries.
func (s *WebhookService) HandleGitHub(ctx context.Context, delivery GitHubDelivery) (*WebhookOutcome, error) {
	if s.secret == "" {
		return nil, ErrSecretNotConfigured
	}
	if !verifyGitHubSignature(delivery.Body, delivery.Signature, s.secret) {
		s.logger.Warn("GitHub signature verification failed", "delivery_id", delivery.DeliveryID)
		return nil, ErrSignatureInvalid
	}

	var event pullRequestEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	// Dedup before filtering: a redelivered "ignored" event stays ignored
	// without re-running anything.
	if delivery.DeliveryID != "" {
		fresh, err := s.queue.AcquireDeliveryMarker(ctx, delivery.DeliveryID, deliveryMarkerTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire delivery marker: %w", err)
		}
		if !fresh {
			return &WebhookOutcome{Status: WebhookDuplicate, Message: "delivery already processed"}, nil
		}
	}

	if delivery.Event != "pull_request" || event.Action != "closed" ||
		!event.PullRequest.Merged || event.Repository.Name != s.repo {
		return &WebhookOutcome{Status: WebhookIgnored, Message: "not a merged proposal PR"}, nil
	}

	prNumber := event.PullRequest.Number
	appointmentID := extractAppointmentID(event.PullRequest.Body, event.PullRequest.Title)

	aggregateID := appointmentID
	if aggregateID == "" {
		aggregateID = fmt.Sprintf("pr-%d", prNumber)
	}
	s.emit(ctx, aggregateID, models.EventPRMerged, map[string]any{
		"pr_number":        prNumber,
		"merge_commit_sha": event.PullRequest.MergeCommitSHA,
		"appointment_id":   appointmentID,
		"repo":             event.Repository.Name,
	})

	envelope := models.Envelope{
		"action_type":      models.ActionTypeExecutePlan,
		"pr_number":        prNumber,
		"merge_commit_sha": event.PullRequest.MergeCommitSHA,
		"appointment_id":   appointmentID,
		"environment":      s.environment,
	}
	if _, err := s.queue.Enqueue(ctx, envelope); err != nil {
		return nil, fmt.Errorf("enqueue plan execution: %w", err)
	}

	s.logger.Info("Merged PR queued for execution",
		"pr_number", prNumber,
		"appointment_id", appointmentID)
	return &WebhookOutcome{
		Status:  WebhookAccepted,
		Message: fmt.Sprintf("PR #%d queued for execution", prNumber),
	}, nil
}

func (s *WebhookService) emit(ctx context.Context, aggregateID, eventType string, payload map[string]any) {
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

// verifyGitHubSignature checks the sha256=<hex> HMAC over the raw body.
func verifyGitHubSignature(body []byte, header, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// extractAppointmentID pulls the appointment reference out of a proposal PR.
// The PR body carries an "appointment_id: X" line; older proposals only named
// it in the title after an em dash. Returns "" when neither matches.
func extractAppointmentID(prBody, prTitle string) string {
	for _, line := range strings.Split(prBody, "\n") {
		if after, ok := strings.CutPrefix(strings.TrimSpace(line), "appointment_id:"); ok {
			return strings.TrimSpace(after)
		}
	}
	if _, after, ok := strings.Cut(prTitle, "—"); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
