// Package orchestrator coordinates the ingest pipeline: risk scoring, action
// sequencing, compliance validation, plan signing, and PR submission.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/julian-najas/cacp/pkg/agent"
	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/gitops"
	"github.com/julian-najas/cacp/pkg/metrics"
	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/scoring"
	"github.com/julian-najas/cacp/pkg/signing"
)

// Identity under which the control plane asks the policy oracle for
// decisions. Plans always pass through human review before execution, hence
// supervised mode.
const (
	PolicyRole = "agent"
	PolicyMode = "supervised"
)

// PRSubmitter opens a reviewable pull request for a built plan. Implemented
// by gitops.Client; nil disables PR submission.
type PRSubmitter interface {
	CreatePlanPR(ctx context.Context, plan models.ExecutionPlan, branch string) (*gitops.PRResult, error)
}

// Result is the outcome of processing one appointment.
type Result struct {
	ProposalID    string          `json:"proposal_id"`
	RiskLevel     string          `json:"risk_level"`
	RiskScore     float64         `json:"risk_score"`
	Actions       []models.Action `json:"actions"`
	HMACSignature string          `json:"hmac_signature"`
	PRURL         string          `json:"pr_url,omitempty"`
	Compliant     bool            `json:"compliant"`
	Violations    []string        `json:"violations"`
}

// Orchestrator runs the pipeline: score → sequence → validate → build →
// sign → PR. Compliance failures short-circuit before signing; PR failures
// never fail the pipeline.
type Orchestrator struct {
	scorer      *scoring.Scorer
	revenue     *agent.RevenueAgent
	compliance  *agent.ComplianceAgent
	clinics     *config.ClinicRegistry
	events      eventstore.Store
	submitter   PRSubmitter
	metrics     *metrics.Metrics
	secret      string
	environment string
	now         func() time.Time
	logger      *slog.Logger
}

// NewOrchestrator wires the pipeline from settings. oracle, events, submitter
// and m may each be nil: a nil oracle skips the remote compliance check, nil
// events disables the audit trail, nil submitter skips PR submission.
func NewOrchestrator(settings *config.Settings, clinics *config.ClinicRegistry, oracle agent.PolicyOracle, events eventstore.Store, submitter PRSubmitter, m *metrics.Metrics) *Orchestrator {
	if clinics == nil {
		clinics = config.NewClinicRegistry(nil)
	}
	return &Orchestrator{
		scorer:      scoring.NewScorer(),
		revenue:     agent.NewRevenueAgent(),
		compliance:  agent.NewComplianceAgent(oracle),
		clinics:     clinics,
		events:      events,
		submitter:   submitter,
		metrics:     m,
		secret:      settings.HMACSecret,
		environment: settings.Environment,
		now:         time.Now,
		logger:      slog.Default(),
	}
}

// ProcessAppointment runs one appointment through the full pipeline and
// returns the proposal summary. It never fails: compliance rejections are
// reported in the result and PR errors degrade to a missing pr_url.
func (o *Orchestrator) ProcessAppointment(ctx context.Context, appt models.Appointment) *Result {
	proposalID := uuid.NewString()
	log := o.logger.With("appointment_id", appt.AppointmentID, "proposal_id", proposalID)

	o.emit(ctx, appt.AppointmentID, models.EventAppointmentReceived, structToMap(appt))

	risk := o.scorer.Score(appt)
	o.emit(ctx, appt.AppointmentID, models.EventRiskScored, map[string]any{
		"score":   risk.Score,
		"level":   risk.Level,
		"factors": risk.Factors,
	})
	log.Info("Risk scored", "risk_score", risk.Score, "risk_level", risk.Level)

	profile := o.clinics.Get(appt.ClinicID)
	sequence := o.revenue.GenerateSequence(risk.Level, profile)
	actions := o.resolveSchedule(appt, sequence.Actions)

	verdict := o.compliance.Validate(ctx, actions, PolicyRole, PolicyMode, appt, profile)
	if !verdict.Compliant {
		log.Warn("Proposal rejected by compliance", "violations", verdict.Violations)
		return &Result{
			ProposalID: proposalID,
			RiskLevel:  risk.Level,
			RiskScore:  risk.Score,
			Actions:    actions,
			Compliant:  false,
			Violations: verdict.Violations,
		}
	}

	plan := gitops.BuildExecutionPlan(proposalID, appt.ClinicID, appt.PatientID, appt.AppointmentID, actions, risk.Level, o.environment)
	o.emit(ctx, appt.AppointmentID, models.EventProposalCreated, map[string]any{
		"proposal_id": proposalID,
		"plan":        structToMap(plan),
	})
	if o.metrics != nil {
		o.metrics.ProposalsTotal.WithLabelValues(risk.Level).Inc()
	}

	signature := ""
	if o.secret != "" {
		signed, err := signing.SignPayload(plan, o.secret)
		if err != nil {
			log.Error("Failed to sign plan", "error", err)
		} else {
			signature = signed
			plan.HMACSignature = signature
			o.emit(ctx, appt.AppointmentID, models.EventProposalSigned, map[string]any{
				"proposal_id": proposalID,
				"plan":        structToMap(plan),
			})
		}
	}

	prURL := o.submitPR(ctx, plan, proposalID, appt.AppointmentID, log)

	return &Result{
		ProposalID:    proposalID,
		RiskLevel:     risk.Level,
		RiskScore:     risk.Score,
		Actions:       actions,
		HMACSignature: signature,
		PRURL:         prURL,
		Compliant:     true,
		Violations:    []string{},
	}
}

// resolveSchedule converts each action's hours_before offset into an absolute
// send instant relative to the appointment. An unparseable appointment time
// falls back to now+24h so reminders still go out ahead of a visit we cannot
// place precisely.
func (o *Orchestrator) resolveSchedule(appt models.Appointment, actions []models.Action) []models.Action {
	base, err := time.Parse(time.RFC3339, appt.ScheduledAt)
	if err != nil {
		base = o.now().Add(24 * time.Hour)
	}

	resolved := make([]models.Action, len(actions))
	for i, action := range actions {
		action.ScheduledAt = base.Add(-time.Duration(action.HoursBefore) * time.Hour).UTC().Format(time.RFC3339)
		action.HoursBefore = 0
		resolved[i] = action
	}
	return resolved
}

// submitPR opens the GitOps pull request for the plan. Failures are logged
// and reported as an empty URL; the proposal itself stands.
func (o *Orchestrator) submitPR(ctx context.Context, plan models.ExecutionPlan, proposalID, appointmentID string, log *slog.Logger) string {
	if o.submitter == nil {
		return ""
	}

	branch := "proposal/" + proposalID[:8]
	result, err := o.submitter.CreatePlanPR(ctx, plan, branch)
	if err != nil {
		log.Error("PR submission failed", "error", err)
		return ""
	}

	o.emit(ctx, appointmentID, models.EventPROpened, map[string]any{
		"pr_number": result.PRNumber,
		"pr_url":    result.PRURL,
		"branch":    result.Branch,
		"plan_id":   proposalID,
	})
	log.Info("PR opened", "pr_number", result.PRNumber, "pr_url", result.PRURL)
	return result.PRURL
}

// emit appends a lifecycle event. Failures are logged, never fatal.
func (o *Orchestrator) emit(ctx context.Context, aggregateID, eventType string, payload map[string]any) {
	if o.events == nil {
		return
	}
	if _, err := o.events.Append(ctx, models.Event{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
	}); err != nil {
		o.logger.Warn("Failed to append event", "event_type", eventType, "error", err)
	}
}

// structToMap round-trips a struct through JSON into the schemaless payload
// form the event store keeps.
func structToMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
