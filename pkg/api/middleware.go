package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/julian-najas/cacp/pkg/masking"
	"github.com/julian-najas/cacp/pkg/metrics"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerDurationMS    = "X-Request-Duration-Ms"

	ctxKeyRequestID = "request_id"
)

// requestIDMiddleware assigns every request a correlation id, honoring one
// supplied by the caller so ids survive proxy hops.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Writer.Header().Set(headerCorrelationID, id)
		c.Next()
	}
}

// requestID returns the correlation id assigned by requestIDMiddleware.
func requestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// timingWriter stamps the duration header just before the first response
// byte goes out, after which headers are immutable.
type timingWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timingWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	elapsed := float64(time.Since(w.start).Microseconds()) / 1000.0
	w.Header().Set(headerDurationMS, strconv.FormatFloat(elapsed, 'f', 2, 64))
}

func (w *timingWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timingWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

func (w *timingWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func timingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &timingWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Next()
	}
}

// loggingMiddleware logs one line per request. The query string passes
// through the PHI masker because ingest payload fields can leak into
// hand-built callback URLs.
func loggingMiddleware(logger *slog.Logger, masker *masking.Masker) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		query := c.Request.URL.RawQuery
		if query != "" && masker != nil {
			query = masker.MaskText(query)
		}
		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", query,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"request_id", requestID(c))
	}
}

// recoveryMiddleware converts panics into the INTERNAL_ERROR envelope.
func recoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic recovered",
					"panic", rec,
					"path", c.Request.URL.Path,
					"request_id", requestID(c))
				respondError(c, http.StatusInternalServerError, CodeInternalError, "Internal server error")
			}
		}()
		c.Next()
	}
}

// metricsMiddleware records request latency against the matched route
// template to keep label cardinality bounded.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
