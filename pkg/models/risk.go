package models

// Risk levels derived from the weighted score.
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// RiskResult is the immutable outcome of a no-show risk assessment.
// Score is the weighted factor sum in [0,1]; Factors records each factor's
// raw contribution so every decision stays auditable.
type RiskResult struct {
	Score   float64            `json:"score"`
	Level   string             `json:"level"`
	Factors map[string]float64 `json:"factors"`
}
