// ABOUTME: Tests for health and version endpoints
// ABOUTME: Covers dependency aggregation and 503 on an unhealthy database

package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/irma/internal/buildinfo"
	"github.com/2389/irma/internal/conversation"
	"github.com/2389/irma/internal/store"
)

func newTestBuild() buildinfo.Info {
	return buildinfo.New("1.0.0-test", "abc123", "2025-01-01")
}

// checkingResponder reports a fixed health status
type checkingResponder struct {
	fixedResponder
	status conversation.DependencyStatus
}

func (c *checkingResponder) CheckHealth(ctx context.Context) (conversation.DependencyStatus, string) {
	return c.status, "model endpoint"
}

func TestHealth_Healthy(t *testing.T) {
	h := newTestGateway(t).Handler()

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[HealthResponse](t, rec)

	assert.Equal(t, "Healthy", health.Status)
	assert.GreaterOrEqual(t, health.UptimeSeconds, int64(0))
	assert.NotEmpty(t, health.TraceID)
	require.Len(t, health.Dependencies, 2)
	assert.Equal(t, "Database", health.Dependencies[0].Name)
	assert.Equal(t, "Healthy", health.Dependencies[0].Status)
	assert.Equal(t, "TurnResponder", health.Dependencies[1].Name)
	assert.Equal(t, "Unknown", health.Dependencies[1].Status)
}

func TestHealth_DatabaseDown(t *testing.T) {
	mock := store.NewMockStore()
	mock.PingErr = assert.AnError
	h := newTestGateway(t, WithStore(mock)).Handler()

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "Unhealthy", health.Status)
	assert.Equal(t, "Unhealthy", health.Dependencies[0].Status)
	assert.NotEmpty(t, health.Dependencies[0].Description)
}

func TestHealth_ResponderDegraded(t *testing.T) {
	responder := &checkingResponder{status: conversation.StatusDegraded}
	h := newTestGateway(t, WithResponder(responder)).Handler()

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "Degraded", health.Status)
	assert.Equal(t, "Degraded", health.Dependencies[1].Status)
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name string
		deps []string
		want conversation.DependencyStatus
	}{
		{"all healthy", []string{"Healthy", "Healthy"}, conversation.StatusHealthy},
		{"unknown ignored", []string{"Healthy", "Unknown"}, conversation.StatusHealthy},
		{"degraded", []string{"Degraded", "Healthy"}, conversation.StatusDegraded},
		{"unhealthy wins", []string{"Degraded", "Unhealthy"}, conversation.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deps []DependencyHealth
			for _, s := range tt.deps {
				deps = append(deps, DependencyHealth{Name: "x", Status: s})
			}
			assert.Equal(t, tt.want, overallStatus(deps))
		})
	}
}

func TestVersion(t *testing.T) {
	h := newTestGateway(t).Handler()

	rec := doRequest(t, h, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[VersionResponse](t, rec)
	assert.Equal(t, "1.0.0-test", v.Version)
	assert.Equal(t, "abc123", v.Commit)
	assert.Equal(t, "2025-01-01", v.BuildDate)
	assert.NotEmpty(t, v.Runtime)
	assert.Equal(t, "Test", v.Environment)
}
