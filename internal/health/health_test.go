package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func TestChecker_Live(t *testing.T) {
	hc := NewChecker(Options{}, nil)

	rec := httptest.NewRecorder()
	hc.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChecker_ReadyWithCache(t *testing.T) {
	healthy := NewChecker(Options{Cache: stubPinger{}}, nil)
	rec := httptest.NewRecorder()
	healthy.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	broken := NewChecker(Options{Cache: stubPinger{err: errors.New("connection refused")}}, nil)
	rec = httptest.NewRecorder()
	broken.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/ready?full=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")

	// Redis 故障不影响存活检查
	rec = httptest.NewRecorder()
	broken.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpstreamHost(t *testing.T) {
	assert.Equal(t, "api.barid.site", upstreamHost("https://api.barid.site"))
	assert.Equal(t, "127.0.0.1", upstreamHost("http://127.0.0.1:8080/v1"))
	assert.Equal(t, "", upstreamHost(""))
	assert.Equal(t, "", upstreamHost("://bad"))
}
