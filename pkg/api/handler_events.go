package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/julian-najas/cacp/pkg/services"
)

// listEventsHandler handles GET /events?aggregate_id=&event_type=&limit=,
// the newest-first audit query.
func (s *Server) listEventsHandler(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusUnprocessableEntity, CodeInvalidRequest,
				"limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	events, err := s.events.List(c.Request.Context(), services.EventQuery{
		AggregateID: c.Query("aggregate_id"),
		EventType:   c.Query("event_type"),
		Limit:       limit,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, &EventListResponse{Events: events, Count: len(events)})
}

// noShowStatsHandler handles GET /stats/no-shows, the appointment-lifecycle
// projection.
func (s *Server) noShowStatsHandler(c *gin.Context) {
	stats, err := s.events.NoShowStats(c.Request.Context())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
