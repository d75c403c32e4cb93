package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/policy"
)

// Violation reasons appended when the policy oracle cannot give a clean
// ALLOW.
const (
	ViolationOPADeny        = "OPA_Deny"
	ViolationOPAUnavailable = "OPA_Unavailable"
)

// ComplianceResult is the verdict for a proposed action sequence.
type ComplianceResult struct {
	Compliant  bool     `json:"compliant"`
	Violations []string `json:"violations"`
}

// PolicyOracle is the remote decision interface the compliance agent
// consults. Nil disables the remote check.
type PolicyOracle interface {
	Evaluate(ctx context.Context, input map[string]any) (*policy.Result, error)
}

// ComplianceAgent validates action proposals before signing. Local checks run
// first; the remote oracle check fails closed on any error.
type ComplianceAgent struct {
	oracle PolicyOracle
	logger *slog.Logger
}

// NewComplianceAgent creates a compliance agent. oracle may be nil, in which
// case only local checks apply.
func NewComplianceAgent(oracle PolicyOracle) *ComplianceAgent {
	return &ComplianceAgent{
		oracle: oracle,
		logger: slog.Default(),
	}
}

// Validate checks each action in the proposal against local limits and the
// policy oracle.
func (a *ComplianceAgent) Validate(ctx context.Context, actions []models.Action, role, mode string, appt models.Appointment, profile config.ClinicProfile) ComplianceResult {
	var violations []string

	// Local check: daily per-patient message cap.
	maxMessages := profile.Messaging.MaxMessagesPerPatientPerDay
	if maxMessages == 0 {
		maxMessages = 3
	}
	if len(actions) > maxMessages {
		violations = append(violations,
			fmt.Sprintf("Action count (%d) exceeds daily limit (%d)", len(actions), maxMessages))
	}

	// Remote check: one oracle decision per action, fail-closed.
	if a.oracle != nil {
		for _, action := range actions {
			input := policy.BuildInput(action.ActionType, role, mode, appt.PatientID, appt.ClinicID,
				map[string]any{"channel": action.Channel})

			result, err := a.oracle.Evaluate(ctx, input)
			if err != nil {
				a.logger.Warn("Policy oracle unavailable, failing closed",
					"action_type", action.ActionType,
					"error", err)
				violations = append(violations, ViolationOPAUnavailable)
				break
			}

			if !result.Allowed() {
				if len(result.Violations) > 0 {
					violations = append(violations, result.Violations...)
				} else {
					violations = append(violations, ViolationOPADeny)
				}
			}
		}
	}

	return ComplianceResult{
		Compliant:  len(violations) == 0,
		Violations: violations,
	}
}
