//go:build property
// +build property

package scoring

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/julian-najas/cacp/pkg/models"
)

func propScorer() *Scorer {
	s := NewScorer()
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

// Property: the score stays in [0, 1] for any combination of inputs,
// including unparseable timestamps.
func TestScoreAlwaysBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	scorer := propScorer()

	properties.Property("score stays within [0, 1]", prop.ForAll(
		func(noShows int, firstVisit bool, scheduledAt string, phone string, whatsapp bool) bool {
			result := scorer.Score(models.Appointment{
				PreviousNoShows: noShows,
				IsFirstVisit:    firstVisit,
				ScheduledAt:     scheduledAt,
				PatientPhone:    phone,
				PatientWhatsapp: whatsapp,
			})
			return result.Score >= 0.0 && result.Score <= 1.0
		},
		gen.IntRange(0, 50),
		gen.Bool(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: adding past no-shows never lowers the score when everything else
// is held constant.
func TestScoreMonotonicInHistory(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	scorer := propScorer()

	properties.Property("more no-shows never lowers the score", prop.ForAll(
		func(base int, firstVisit bool, whatsapp bool) bool {
			appt := models.Appointment{
				PreviousNoShows: base,
				IsFirstVisit:    firstVisit,
				ScheduledAt:     "2026-03-18T10:00:00Z",
				PatientWhatsapp: whatsapp,
			}
			lower := scorer.Score(appt).Score

			appt.PreviousNoShows = base + 1
			higher := scorer.Score(appt).Score

			return lower <= higher
		},
		gen.IntRange(0, 10),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: scoring is deterministic.
func TestScoreDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	scorer := propScorer()

	properties.Property("same input yields same score", prop.ForAll(
		func(noShows int, scheduledAt string) bool {
			appt := models.Appointment{PreviousNoShows: noShows, ScheduledAt: scheduledAt}
			return scorer.Score(appt).Score == scorer.Score(appt).Score
		},
		gen.IntRange(0, 20),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
