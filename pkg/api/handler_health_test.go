package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysUp(context.Context) bool { return true }

func TestReadyAllDependenciesUp(t *testing.T) {
	f := newServerFixture(t)
	f.server.checkPostgres = alwaysUp
	f.server.checkOPA = alwaysUp

	rec := f.get("/ready")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ready"])
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, checks["postgres"])
	assert.Equal(t, true, checks["redis"])
	assert.Equal(t, true, checks["opa"])
}

func TestReadyPostgresDown(t *testing.T) {
	f := newServerFixture(t)
	f.server.checkOPA = alwaysUp
	// no database attached: the postgres probe reports not-ready

	rec := f.get("/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ready"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, false, checks["postgres"])
	assert.Equal(t, true, checks["redis"])
}

func TestReadyRedisDown(t *testing.T) {
	f := newServerFixture(t)
	f.server.checkPostgres = alwaysUp
	f.server.checkOPA = alwaysUp
	f.redis.Close()

	rec := f.get("/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ready"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, false, checks["redis"])
}

func TestReadyOPADown(t *testing.T) {
	f := newServerFixture(t)
	f.server.checkPostgres = alwaysUp
	// no OPA client attached

	rec := f.get("/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ready"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, false, checks["opa"])
}
