package eventstore

import (
	"math"

	"github.com/julian-najas/cacp/pkg/models"
)

// NoShowStats is the read model behind GET /stats/no-shows.
type NoShowStats struct {
	TotalAppointments int     `json:"total_appointments"`
	NoShows           int     `json:"no_shows"`
	Confirmed         int     `json:"confirmed"`
	Rescheduled       int     `json:"rescheduled"`
	NoShowRate        float64 `json:"no_show_rate"`
}

// NoShowEventTypes lists the lifecycle events the projection folds over.
var NoShowEventTypes = []string{
	models.EventAppointmentIngested,
	models.EventNoShowRecorded,
	models.EventAppointmentConfirmed,
	models.EventAppointmentRescheduled,
}

// ProjectNoShows folds appointment lifecycle events into no-show statistics.
// Events of other types pass through uncounted.
func ProjectNoShows(events []models.Event) NoShowStats {
	counts := make(map[string]int, len(NoShowEventTypes))
	for _, event := range events {
		counts[event.EventType]++
	}
	return NoShowStatsFromCounts(counts)
}

// NoShowStatsFromCounts builds the stats from per-type counts, so stores can
// fold with a single aggregate query instead of paging the log.
func NoShowStatsFromCounts(counts map[string]int) NoShowStats {
	stats := NoShowStats{
		TotalAppointments: counts[models.EventAppointmentIngested],
		NoShows:           counts[models.EventNoShowRecorded],
		Confirmed:         counts[models.EventAppointmentConfirmed],
		Rescheduled:       counts[models.EventAppointmentRescheduled],
	}
	if stats.TotalAppointments > 0 {
		rate := float64(stats.NoShows) / float64(stats.TotalAppointments)
		stats.NoShowRate = math.Round(rate*10000) / 10000
	}
	return stats
}
