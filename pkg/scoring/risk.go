// Package scoring implements the deterministic no-show risk scorer.
//
// The scorer is rule-based rather than ML-based so every score is auditable:
// each factor yields a signal in [0, 1] and the weighted sum is the final
// score. Thresholds: below 0.3 low, below 0.6 medium, otherwise high.
package scoring

import (
	"math"
	"time"

	"github.com/julian-najas/cacp/pkg/models"
)

// Factor weights. They sum to 1.0.
const (
	weightNoShowHistory = 0.40
	weightFirstVisit    = 0.15
	weightLeadTime      = 0.15
	weightTimeOfDay     = 0.10
	weightDayOfWeek     = 0.10
	weightContact       = 0.10
)

// Scorer computes no-show risk for an appointment. All appointment fields are
// optional; missing data falls back to neutral signals.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a risk scorer using the wall clock.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Score assesses an appointment and returns the weighted risk result.
func (s *Scorer) Score(appt models.Appointment) models.RiskResult {
	factors := map[string]float64{
		"no_show_history": historySignal(appt.PreviousNoShows),
		"first_visit":     firstVisitSignal(appt.IsFirstVisit),
		"lead_time":       s.leadTimeSignal(appt.ScheduledAt),
		"time_of_day":     timeOfDaySignal(appt.ScheduledAt),
		"day_of_week":     dayOfWeekSignal(appt.ScheduledAt),
		"contact":         contactSignal(appt),
	}

	raw := weightNoShowHistory*factors["no_show_history"] +
		weightFirstVisit*factors["first_visit"] +
		weightLeadTime*factors["lead_time"] +
		weightTimeOfDay*factors["time_of_day"] +
		weightDayOfWeek*factors["day_of_week"] +
		weightContact*factors["contact"]

	score := clamp(round4(raw))

	return models.RiskResult{
		Score:   score,
		Level:   levelFor(score),
		Factors: factors,
	}
}

func levelFor(score float64) string {
	if score < 0.3 {
		return models.RiskLevelLow
	}
	if score < 0.6 {
		return models.RiskLevelMedium
	}
	return models.RiskLevelHigh
}

// historySignal is the strongest predictor: 0 no-shows scores zero, then
// 0.5, 0.75, and 1.0 for three or more.
func historySignal(previousNoShows int) float64 {
	switch {
	case previousNoShows <= 0:
		return 0.0
	case previousNoShows == 1:
		return 0.5
	case previousNoShows == 2:
		return 0.75
	default:
		return 1.0
	}
}

func firstVisitSignal(isFirstVisit bool) float64 {
	if isFirstVisit {
		return 0.6
	}
	return 0.0
}

// leadTimeSignal scores the days remaining until the appointment. Same-day
// is riskiest, 1-3 days moderately so, 3-14 days is the sweet spot, and
// bookings further out than two weeks drift back up.
func (s *Scorer) leadTimeSignal(scheduledAt string) float64 {
	scheduled, ok := parseISO(scheduledAt)
	if !ok {
		return 0.3
	}
	days := scheduled.Sub(s.now()).Hours() / 24
	switch {
	case days < 1:
		return 0.7
	case days < 3:
		return 0.3
	case days > 14:
		return 0.5
	default:
		return 0.1
	}
}

// timeOfDaySignal penalizes early-morning and late-afternoon slots.
func timeOfDaySignal(scheduledAt string) float64 {
	scheduled, ok := parseISO(scheduledAt)
	if !ok {
		return 0.3
	}
	hour := scheduled.Hour()
	switch {
	case hour < 9 || hour >= 17:
		return 0.6
	case hour < 11:
		return 0.2
	default:
		return 0.1
	}
}

// dayOfWeekSignal penalizes Mondays and Fridays, mildly penalizes weekends.
func dayOfWeekSignal(scheduledAt string) float64 {
	scheduled, ok := parseISO(scheduledAt)
	if !ok {
		return 0.3
	}
	switch scheduled.Weekday() {
	case time.Monday, time.Friday:
		return 0.6
	case time.Saturday, time.Sunday:
		return 0.4
	default:
		return 0.1
	}
}

// contactSignal scores reachability: both channels zero, one channel 0.3,
// unreachable 0.8.
func contactSignal(appt models.Appointment) float64 {
	hasPhone := appt.PatientPhone != ""
	switch {
	case hasPhone && appt.PatientWhatsapp:
		return 0.0
	case hasPhone || appt.PatientWhatsapp:
		return 0.3
	default:
		return 0.8
	}
}

// parseISO accepts RFC 3339 instants as well as zone-less and date-only
// forms, which clinic management systems commonly emit.
func parseISO(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clamp(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
