// Package gitops builds execution-plan manifests and submits them as pull
// requests to the clinic configuration repository. A plan only reaches the
// worker after a human merges its PR.
package gitops

import (
	"time"

	"github.com/julian-najas/cacp/pkg/models"
)

// BuildExecutionPlan assembles the manifest committed to the GitOps repo.
// Every action is enriched with the patient and appointment IDs the worker
// needs, and the signature field starts empty for the signer to fill.
func BuildExecutionPlan(proposalID, clinicID, patientID, appointmentID string, actions []models.Action, riskLevel, environment string) models.ExecutionPlan {
	planActions := make([]models.Action, 0, len(actions))
	for _, action := range actions {
		planActions = append(planActions, models.Action{
			ActionType:    action.ActionType,
			PatientID:     patientID,
			AppointmentID: appointmentID,
			Channel:       action.Channel,
			Template:      action.Template,
			ScheduledAt:   action.ScheduledAt,
		})
	}

	return models.ExecutionPlan{
		PlanID:        proposalID,
		Version:       models.PlanVersion,
		Environment:   environment,
		ClinicID:      clinicID,
		Actions:       planActions,
		RiskLevel:     riskLevel,
		HMACSignature: "", // filled after signing
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}
