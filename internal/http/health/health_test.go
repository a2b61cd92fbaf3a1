package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/platform/logging"
)

var (
	up   = PingFunc(func(context.Context) error { return nil })
	down = PingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func readyz(t *testing.T, checks ...Check) (int, report) {
	t.Helper()
	rec := httptest.NewRecorder()
	New(logging.Discard(), time.Second, checks...).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var rep report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	return rec.Code, rep
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	New(logging.Discard(), time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadiness(t *testing.T) {
	code, rep := readyz(t, Check{Name: "mongo", Pinger: up}, Check{Name: "redis", Pinger: down, Optional: true})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", rep.Status)
	assert.Equal(t, map[string]string{"mongo": "ok", "redis": "connection refused"}, rep.Checks)

	code, rep = readyz(t, Check{Name: "mongo", Pinger: down})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", rep.Status)
}
