package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthChecker runs the named readiness checks behind /readyz.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  []HealthCheck
	logger  *slog.Logger
	started time.Time
	now     func() time.Time
}

// HealthCheck is a named dependency check. Detail is reported on success,
// e.g. "2 players from csv:cricket_data.csv".
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) (detail string, err error)
}

// HealthStatus is the JSON response for health/readiness endpoints.
type HealthStatus struct {
	Status string                 `json:"status"` // "ok" or "degraded"
	Uptime string                 `json:"uptime,omitempty"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the status of a single check.
type CheckResult struct {
	Status    string `json:"status"`            // "ok" or "fail"
	Detail    string `json:"detail,omitempty"`  // Check-specific summary on success.
	Message   string `json:"message,omitempty"` // Error message on failure.
	LatencyMS int64  `json:"latency_ms"`
}

// NewHealthChecker creates a HealthChecker with no checks registered.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{logger: logger, started: time.Now(), now: time.Now}
}

// AddCheck registers a check that only reports pass or fail.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error) {
	h.AddDetailedCheck(name, func(ctx context.Context) (string, error) {
		return "", check(ctx)
	})
}

// AddDetailedCheck registers a check that also describes what it saw.
func (h *HealthChecker) AddDetailedCheck(name string, check func(ctx context.Context) (string, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
}

// CheckHealth returns liveness. It is "ok" whenever the process can answer.
func (h *HealthChecker) CheckHealth() HealthStatus {
	return HealthStatus{Status: "ok", Uptime: h.uptime()}
}

// CheckReady runs every check with a shared timeout. The result is "ok"
// only when all of them pass.
func (h *HealthChecker) CheckReady(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{Status: "ok", Uptime: h.uptime()}
	if len(checks) == 0 {
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	status.Checks = make(map[string]CheckResult, len(checks))
	for _, c := range checks {
		start := h.now()
		detail, err := c.Check(checkCtx)
		result := CheckResult{Status: "ok", Detail: detail, LatencyMS: h.now().Sub(start).Milliseconds()}
		if err != nil {
			status.Status = "degraded"
			result.Status = "fail"
			result.Detail = ""
			result.Message = err.Error()
			if h.logger != nil {
				h.logger.Warn("readiness check failed",
					slog.String("check", c.Name),
					slog.String("error", err.Error()),
				)
			}
		}
		status.Checks[c.Name] = result
	}
	return status
}

func (h *HealthChecker) uptime() string {
	return h.now().Sub(h.started).Truncate(time.Second).String()
}
