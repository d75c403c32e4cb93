package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// readyCheckTimeout bounds each dependency probe so a hung dependency cannot
// stall the readiness endpoint past the prober's patience.
const readyCheckTimeout = 2 * time.Second

// healthHandler handles GET /health. Liveness only: no dependency checks, so
// the orchestrating platform never restarts the process because a peer is
// down.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readyHandler handles GET /ready. 200 when Postgres, Redis and OPA all
// answer; 503 otherwise.
func (s *Server) readyHandler(c *gin.Context) {
	run := func(check readyCheck) bool {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyCheckTimeout)
		defer cancel()
		return check(ctx)
	}

	checks := map[string]bool{
		"postgres": run(s.checkPostgres),
		"redis":    run(s.checkRedis),
		"opa":      run(s.checkOPA),
	}
	ready := checks["postgres"] && checks["redis"] && checks["opa"]

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, &ReadyResponse{Ready: ready, Checks: checks})
}
