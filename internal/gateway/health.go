// ABOUTME: Health and version endpoints
// ABOUTME: Health aggregates dependency checks into Healthy, Degraded or Unhealthy

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/2389/irma/internal/conversation"
)

// healthCheckTimeout bounds each dependency check.
const healthCheckTimeout = 2 * time.Second

// DependencyHealth is the health of one dependency.
type DependencyHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string             `json:"status"`
	UptimeSeconds int64              `json:"uptimeSeconds"`
	Dependencies  []DependencyHealth `json:"dependencies"`
	TraceID       string             `json:"traceId"`
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"buildDate"`
	Runtime     string `json:"runtime"`
	Environment string `json:"environment"`
}

func (g *Gateway) checkDatabase(ctx context.Context) DependencyHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	dep := DependencyHealth{Name: "Database", Status: string(conversation.StatusHealthy)}
	if err := g.store.Ping(ctx); err != nil {
		dep.Status = string(conversation.StatusUnhealthy)
		dep.Description = err.Error()
	}
	return dep
}

func (g *Gateway) checkResponder(ctx context.Context) DependencyHealth {
	dep := DependencyHealth{Name: "TurnResponder", Status: string(conversation.StatusUnknown)}

	checker, ok := g.responder.(conversation.HealthChecker)
	if !ok {
		dep.Description = "responder does not report health"
		return dep
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	status, description := checker.CheckHealth(ctx)
	dep.Status = string(status)
	dep.Description = description
	return dep
}

// overallStatus folds dependency statuses: any Unhealthy wins, then any Degraded.
func overallStatus(deps []DependencyHealth) conversation.DependencyStatus {
	result := conversation.StatusHealthy
	for _, d := range deps {
		switch conversation.DependencyStatus(d.Status) {
		case conversation.StatusUnhealthy:
			return conversation.StatusUnhealthy
		case conversation.StatusDegraded:
			result = conversation.StatusDegraded
		}
	}
	return result
}

// handleHealth reports dependency health; 503 when any dependency is unhealthy.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := []DependencyHealth{
		g.checkDatabase(r.Context()),
		g.checkResponder(r.Context()),
	}
	status := overallStatus(deps)

	code := http.StatusOK
	if status == conversation.StatusUnhealthy {
		code = http.StatusServiceUnavailable
		g.logger.Warn("health check failed", "dependencies", deps)
	}

	g.writeJSON(w, code, HealthResponse{
		Status:        string(status),
		UptimeSeconds: int64(g.build.Uptime(time.Now()).Seconds()),
		Dependencies:  deps,
		TraceID:       TraceID(r.Context()),
	})
}

// handleVersion reports build metadata.
func (g *Gateway) handleVersion(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, VersionResponse{
		Version:     g.build.Version,
		Commit:      g.build.Commit,
		BuildDate:   g.build.BuildDate,
		Runtime:     g.build.Runtime,
		Environment: g.config.Server.Environment,
	})
}
