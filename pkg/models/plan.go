package models

// PlanVersion is the manifest schema version stamped on every plan.
const PlanVersion = "1.0.0"

// ExecutionPlan is the reviewable artifact committed to the GitOps repository.
// Field order is irrelevant: plans are canonicalized before signing, so the
// JSON tags only fix the key names.
type ExecutionPlan struct {
	PlanID        string   `json:"plan_id"`
	Version       string   `json:"version"`
	Environment   string   `json:"environment"`
	ClinicID      string   `json:"clinic_id"`
	Actions       []Action `json:"actions"`
	RiskLevel     string   `json:"risk_level"`
	HMACSignature string   `json:"hmac_signature"`
	CreatedAt     string   `json:"created_at"`
}
