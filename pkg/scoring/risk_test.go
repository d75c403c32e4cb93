package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julian-najas/cacp/pkg/models"
)

// Tuesday noon UTC. Scheduled dates in the tests are relative to this.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	s := NewScorer()
	s.now = func() time.Time { return testNow }
	return s
}

func TestScoreZeroHistoryLowRisk(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score(models.Appointment{
		PreviousNoShows: 0,
		IsFirstVisit:    false,
		ScheduledAt:     "2026-03-18T10:00:00+00:00", // Wednesday mid-morning
		PatientPhone:    "+34600000000",
		PatientWhatsapp: true,
	})

	assert.Equal(t, models.RiskLevelLow, result.Level)
	assert.Less(t, result.Score, 0.3)
}

func TestScoreHighHistoryHighRisk(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score(models.Appointment{
		PreviousNoShows: 5,
		IsFirstVisit:    true,
		ScheduledAt:     "2026-03-16T08:00:00+00:00", // Monday early
		PatientPhone:    "",
		PatientWhatsapp: false,
	})

	assert.Equal(t, models.RiskLevelHigh, result.Level)
	assert.GreaterOrEqual(t, result.Score, 0.6)
}

func TestScoreMediumRisk(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score(models.Appointment{
		PreviousNoShows: 1,
		ScheduledAt:     "2026-03-10T18:00:00+00:00", // same day, after hours
		PatientPhone:    "+34600000000",
	})

	assert.Equal(t, models.RiskLevelMedium, result.Level)
	assert.InDelta(t, 0.405, result.Score, 0.0001)
}

func TestScoreBounds(t *testing.T) {
	scorer := newTestScorer()

	for ns := 0; ns < 6; ns++ {
		result := scorer.Score(models.Appointment{PreviousNoShows: ns})
		assert.GreaterOrEqual(t, result.Score, 0.0)
		assert.LessOrEqual(t, result.Score, 1.0)
	}
}

func TestScoreFactorsPopulated(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score(models.Appointment{PreviousNoShows: 2})

	for _, factor := range []string{
		"no_show_history", "first_visit", "lead_time",
		"time_of_day", "day_of_week", "contact",
	} {
		assert.Contains(t, result.Factors, factor)
	}
	assert.Len(t, result.Factors, 6)
}

func TestScoreEmptyAppointment(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score(models.Appointment{})

	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 1.0)
	assert.Contains(t, []string{models.RiskLevelLow, models.RiskLevelMedium, models.RiskLevelHigh}, result.Level)
}

func TestScoreMonotonicWithNoShowCount(t *testing.T) {
	scorer := newTestScorer()

	var scores []float64
	for n := 0; n < 5; n++ {
		r := scorer.Score(models.Appointment{
			PreviousNoShows: n,
			ScheduledAt:     "2026-03-18T10:00:00+00:00",
			PatientPhone:    "+34600000000",
			PatientWhatsapp: true,
		})
		scores = append(scores, r.Score)
	}

	for i := 0; i < len(scores)-1; i++ {
		assert.LessOrEqual(t, scores[i], scores[i+1])
	}
}

func TestHistorySignal(t *testing.T) {
	tests := []struct {
		noShows int
		want    float64
	}{
		{0, 0.0},
		{1, 0.5},
		{2, 0.75},
		{3, 1.0},
		{10, 1.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, historySignal(tt.noShows), "no_shows=%d", tt.noShows)
	}
}

func TestLeadTimeSignal(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		name        string
		scheduledAt string
		want        float64
	}{
		{"same day", "2026-03-10T18:00:00Z", 0.7},
		{"two days out", "2026-03-12T12:00:00Z", 0.3},
		{"one week out", "2026-03-17T12:00:00Z", 0.1},
		{"three weeks out", "2026-03-31T12:00:00Z", 0.5},
		{"unparseable", "not-a-date", 0.3},
		{"empty", "", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorer.leadTimeSignal(tt.scheduledAt))
		})
	}
}

func TestTimeOfDaySignal(t *testing.T) {
	tests := []struct {
		name        string
		scheduledAt string
		want        float64
	}{
		{"early morning", "2026-03-18T08:00:00Z", 0.6},
		{"late afternoon", "2026-03-18T17:00:00Z", 0.6},
		{"mid morning", "2026-03-18T09:30:00Z", 0.2},
		{"midday", "2026-03-18T12:00:00Z", 0.1},
		{"unknown", "garbage", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeOfDaySignal(tt.scheduledAt))
		})
	}
}

func TestDayOfWeekSignal(t *testing.T) {
	tests := []struct {
		name        string
		scheduledAt string
		want        float64
	}{
		{"monday", "2026-03-16T10:00:00Z", 0.6},
		{"friday", "2026-03-20T10:00:00Z", 0.6},
		{"saturday", "2026-03-21T10:00:00Z", 0.4},
		{"sunday", "2026-03-22T10:00:00Z", 0.4},
		{"wednesday", "2026-03-18T10:00:00Z", 0.1},
		{"unknown", "", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dayOfWeekSignal(tt.scheduledAt))
		})
	}
}

func TestContactSignal(t *testing.T) {
	tests := []struct {
		name string
		appt models.Appointment
		want float64
	}{
		{"both channels", models.Appointment{PatientPhone: "+34600", PatientWhatsapp: true}, 0.0},
		{"phone only", models.Appointment{PatientPhone: "+34600"}, 0.3},
		{"whatsapp only", models.Appointment{PatientWhatsapp: true}, 0.3},
		{"unreachable", models.Appointment{}, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contactSignal(tt.appt))
		})
	}
}

func TestParseISO(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"rfc3339 with offset", "2026-03-18T10:00:00+02:00", true},
		{"rfc3339 zulu", "2026-03-18T10:00:00Z", true},
		{"naive datetime", "2026-03-18T10:00:00", true},
		{"date only", "2026-03-18", true},
		{"garbage", "march 18th", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := parseISO(tt.value)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.False(t, parsed.IsZero())
			}
		})
	}
}
