package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// defaultReplayBatch bounds a replay run when the operator does not say how
// many envelopes to move.
const defaultReplayBatch = 100

// replayDLQHandler handles POST /admin/dlq/replay: moves dead-lettered
// envelopes back onto the main queue with their retry budget reset.
func (s *Server) replayDLQHandler(c *gin.Context) {
	var req ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusUnprocessableEntity, CodeInvalidRequest,
			"Request validation failed", bindingDetails(err)...)
		return
	}
	if s.queue == nil {
		respondError(c, http.StatusServiceUnavailable, CodeInternalError, "work queue not configured")
		return
	}

	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = defaultReplayBatch
	}

	replayed, err := s.queue.ReplayDLQ(c.Request.Context(), maxItems)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	s.logger.Info("DLQ replay complete", "replayed", replayed, "request_id", requestID(c))
	c.JSON(http.StatusOK, &ReplayResponse{Replayed: replayed})
}
