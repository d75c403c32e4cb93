package api

import (
	"github.com/julian-najas/cacp/pkg/demo"
	"github.com/julian-najas/cacp/pkg/models"
)

// IngestResponse is returned by POST /ingest with 202. pr_url is omitted
// when PR submission is disabled or failed.
type IngestResponse struct {
	ProposalID   string   `json:"proposal_id"`
	RiskLevel    string   `json:"risk_level"`
	RiskScore    float64  `json:"risk_score"`
	ActionsCount int      `json:"actions_count"`
	PRURL        string   `json:"pr_url,omitempty"`
	Compliant    bool     `json:"compliant"`
	Violations   []string `json:"violations"`
	Message      string   `json:"message"`
}

// EventListResponse is returned by GET /events.
type EventListResponse struct {
	Events []models.Event `json:"events"`
	Count  int            `json:"count"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready  bool            `json:"ready"`
	Checks map[string]bool `json:"checks"`
}

// ConsentResponse acknowledges a consent mutation.
type ConsentResponse struct {
	PatientID string   `json:"patient_id"`
	Channels  []string `json:"channels"`
	Status    string   `json:"status"`
}

// ReplayResponse reports how many DLQ envelopes were requeued.
type ReplayResponse struct {
	Replayed int `json:"replayed"`
}

// ROIResponse is the JSON body of GET /demo/dental-roi: the report sections
// flattened to the top level plus the executive summary and the raw
// simulation aggregates.
type ROIResponse struct {
	demo.ROIReport
	ExecutiveSummary string                 `json:"executive_summary"`
	Simulation       demo.SimulationSummary `json:"simulation"`
}
