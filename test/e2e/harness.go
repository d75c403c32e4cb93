// Package e2e provides end-to-end test infrastructure for the CACP pipeline.
// A TestApp boots the full control plane in-process: miniredis behind the
// work queue and consent store, the in-memory event store, a stubbed policy
// oracle, and a scripted messaging adapter in place of the SMS provider.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/julian-najas/cacp/pkg/api"
	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/orchestrator"
	"github.com/julian-najas/cacp/pkg/policy"
	"github.com/julian-najas/cacp/pkg/queue"
	"github.com/julian-najas/cacp/pkg/services"
)

// Secrets shared between the app under test and the webhook helpers. The
// merged-PR helper signs with the same secret the webhook service verifies
// against, so deliveries authenticate the way real ones do.
const (
	testHMACSecret    = "e2e-hmac-secret"
	testWebhookSecret = "e2e-webhook-secret"
	testRepo          = "clinic-gitops-config"
)

// TestApp boots a complete CACP instance for e2e testing.
type TestApp struct {
	Settings *config.Settings
	Queue    *queue.Queue
	Events   eventstore.Store
	Consents consent.Store
	Contact  *ScriptedAdapter
	Pool     *queue.WorkerPool
	Server   *api.Server

	BaseURL string // e.g. "http://127.0.0.1:54321"

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	workerCount   int
	maxRetries    int
	rateLimit     int
	quietStart    int
	quietEnd      int
	planAdapter   queue.Adapter
	opaDecision   string
	opaViolations []string
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithWorkerCount sets the number of worker pool goroutines.
func WithWorkerCount(n int) TestAppOption {
	return func(c *testAppConfig) { c.workerCount = n }
}

// WithMaxRetries caps adapter retries before an envelope dead-letters.
func WithMaxRetries(n int) TestAppOption {
	return func(c *testAppConfig) { c.maxRetries = n }
}

// WithRateLimit caps sends per patient and channel within one minute.
func WithRateLimit(n int) TestAppOption {
	return func(c *testAppConfig) { c.rateLimit = n }
}

// WithQuietHours sets the local no-send window. Equal bounds disable it,
// which is the harness default.
func WithQuietHours(start, end int) TestAppOption {
	return func(c *testAppConfig) {
		c.quietStart = start
		c.quietEnd = end
	}
}

// WithPlanAdapter replaces the real plan executor behind execute_plan
// envelopes. Used by the dead-letter tests to script adapter failures.
func WithPlanAdapter(a queue.Adapter) TestAppOption {
	return func(c *testAppConfig) { c.planAdapter = a }
}

// WithOPADecision scripts the policy oracle's verdict for every evaluation.
func WithOPADecision(decision string, violations ...string) TestAppOption {
	return func(c *testAppConfig) {
		c.opaDecision = decision
		c.opaViolations = violations
	}
}

// NewTestApp creates and starts a full CACP test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tc := &testAppConfig{
		workerCount: 2,
		maxRetries:  2,
		rateLimit:   10,
		opaDecision: policy.DecisionAllow,
	}
	for _, opt := range opts {
		opt(tc)
	}

	// 1. Redis: work queue, rails state, consent store.
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewQueue(client)
	consents := consent.NewRedisStore(client)

	// 2. Event store.
	events := eventstore.NewMemoryStore()

	// 3. Policy oracle stub. One handler serves both the decision document
	// and the health probe.
	violations := tc.opaViolations
	if violations == nil {
		violations = []string{}
	}
	opa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"decision":   tc.opaDecision,
				"violations": violations,
			},
		})
	}))
	t.Cleanup(opa.Close)
	oracle := policy.NewClient(opa.URL)

	// 4. Settings: signing and webhook verification on; no GitHub token, so
	// proposals stay local and pr_url comes back empty; no Twilio token, so
	// status callbacks arrive unsigned.
	settings := &config.Settings{
		HMACSecret:          testHMACSecret,
		GitHubRepo:          testRepo,
		GitHubWebhookSecret: testWebhookSecret,
		Environment:         "dev",
	}

	// 5. Queue tuned for test speed: short dequeue blocking, millisecond
	// backoff, quiet hours off unless an option turns them on.
	queueCfg := &config.QueueConfig{
		WorkerCount:             tc.workerCount,
		DequeueTimeout:          100 * time.Millisecond,
		MaxRetries:              tc.maxRetries,
		RetryBackoff:            []time.Duration{10 * time.Millisecond},
		RateLimit:               tc.rateLimit,
		RateWindow:              time.Minute,
		DedupTTL:                time.Hour,
		QuietHoursStart:         tc.quietStart,
		QuietHoursEnd:           tc.quietEnd,
		Timezone:                "Europe/Madrid",
		GracefulShutdownTimeout: 5 * time.Second,
	}

	// 6. Pipeline services.
	orch := orchestrator.NewOrchestrator(settings, nil, oracle, events, nil, nil)
	eventService := services.NewEventService(events)
	webhookService := services.NewWebhookService(settings, q, events)
	deliveryService := services.NewDeliveryStatusService("", events, nil)
	consentService := services.NewConsentService(consents, events)

	// 7. Worker pool: the real plan executor fans merged plans out, the
	// scripted adapter stands in for the messaging provider.
	contact := NewScriptedAdapter()
	planAdapter := queue.Adapter(queue.NewPlanExecutor(q, events, settings.HMACSecret))
	if tc.planAdapter != nil {
		planAdapter = tc.planAdapter
	}
	adapters := map[string]queue.Adapter{
		models.ActionTypeExecutePlan:      planAdapter,
		models.ActionTypeSendReminder:     contact,
		models.ActionTypeSendConfirmation: contact,
		models.ActionTypeReschedule:       contact,
	}
	pool := queue.NewWorkerPool("e2e-"+t.Name(), q, queueCfg, adapters, events, consents, nil)
	pool.Start(context.Background())

	// 8. HTTP server on an ephemeral port.
	server := api.NewServer(settings, orch, webhookService, deliveryService, eventService, consentService)
	server.SetQueue(q)
	server.SetOPA(oracle)
	httpd := httptest.NewServer(server.Router())

	app := &TestApp{
		Settings: settings,
		Queue:    q,
		Events:   events,
		Consents: consents,
		Contact:  contact,
		Pool:     pool,
		Server:   server,
		BaseURL:  httpd.URL,
		t:        t,
	}

	// Register cleanup in reverse-creation order. The pool stops before the
	// redis client closes underneath it.
	t.Cleanup(func() {
		httpd.Close()
		pool.Stop()
	})

	return app
}
