// Package healthcheck provides health and readiness check functionality
package healthcheck

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check represents a health check
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
	Metadata    interface{}   `json:"metadata,omitempty"`
}

// Response represents the health check response
type Response struct {
	Status        Status        `json:"status"`
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	Checks        []Check       `json:"checks"`
	TotalDuration time.Duration `json:"total_duration_ms"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) Check
}

// HealthCheck manages health checks
type HealthCheck struct {
	version  string
	checkers map[string]Checker
	logger   *zap.Logger
	mu       sync.RWMutex
	cache    *Response
	cacheTTL time.Duration
	timeout  time.Duration
}

// New creates a new health check instance
func New(version string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		version:  version,
		checkers: make(map[string]Checker),
		logger:   logger,
		cacheTTL: 5 * time.Second,
		timeout:  5 * time.Second,
	}
}

// Register registers a health checker
func (h *HealthCheck) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
	h.cache = nil
}

// SetCacheTTL sets the cache TTL for health check responses
func (h *HealthCheck) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheTTL = ttl
}

// LivenessHandler answers as long as the process serves HTTP
func (h *HealthCheck) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "alive",
			"version":   h.version,
			"timestamp": time.Now().UTC(),
		})
	}
}

// ReadinessHandler runs every check; anything unhealthy answers 503
func (h *HealthCheck) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := h.Check(r.Context())
		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
			h.logger.Warn("Readiness check failed", zap.Any("checks", response.Checks))
		}
		writeJSON(w, statusCode, response)
	}
}

// Check performs all health checks concurrently, serving a cached result within the TTL
func (h *HealthCheck) Check(ctx context.Context) Response {
	h.mu.RLock()
	if h.cache != nil && time.Since(h.cache.Timestamp) < h.cacheTTL {
		cached := *h.cache
		h.mu.RUnlock()
		return cached
	}
	checkers := make(map[string]Checker, len(h.checkers))
	for name, c := range h.checkers {
		checkers[name] = c
	}
	h.mu.RUnlock()

	start := time.Now()
	response := Response{
		Version:   h.version,
		Timestamp: start,
		Status:    StatusHealthy,
		Checks:    make([]Check, 0, len(checkers)),
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var wg sync.WaitGroup
	checksChan := make(chan Check, len(checkers))
	for name, checker := range checkers {
		wg.Add(1)
		go func(n string, c Checker) {
			defer wg.Done()
			check := c.Check(checkCtx)
			check.Name = n
			checksChan <- check
		}(name, checker)
	}
	wg.Wait()
	close(checksChan)

	for check := range checksChan {
		response.Checks = append(response.Checks, check)
		if check.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if check.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}
	sort.Slice(response.Checks, func(i, j int) bool { return response.Checks[i].Name < response.Checks[j].Name })
	response.TotalDuration = time.Since(start)

	h.mu.Lock()
	h.cache = &response
	h.mu.Unlock()

	return response
}

// Pinger is anything with a context-aware ping, such as the counter store
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a dependency by pinging it. Non-critical failures only degrade.
type PingChecker struct {
	pinger   Pinger
	critical bool
}

// NewPingChecker creates a ping-based checker
func NewPingChecker(pinger Pinger, critical bool) *PingChecker {
	return &PingChecker{pinger: pinger, critical: critical}
}

// Check pings the dependency
func (p *PingChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Status: StatusHealthy, LastChecked: start}

	if err := p.pinger.Ping(ctx); err != nil {
		check.Status = StatusDegraded
		if p.critical {
			check.Status = StatusUnhealthy
		}
		check.Message = err.Error()
	}
	check.Duration = time.Since(start)
	return check
}

// DatabaseChecker checks database health and reports pool stats
type DatabaseChecker struct {
	db *sql.DB
}

// NewDatabaseChecker creates a database checker
func NewDatabaseChecker(db *sql.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

// Check pings the database
func (d *DatabaseChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Status: StatusHealthy, LastChecked: start}

	if err := d.db.PingContext(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}

	stats := d.db.Stats()
	check.Metadata = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}
	check.Duration = time.Since(start)
	return check
}

// CustomChecker allows for custom health check logic
type CustomChecker struct {
	check func(ctx context.Context) (Status, string, interface{})
}

// NewCustomChecker creates a new custom checker
func NewCustomChecker(check func(ctx context.Context) (Status, string, interface{})) *CustomChecker {
	return &CustomChecker{check: check}
}

// Check performs custom health check
func (c *CustomChecker) Check(ctx context.Context) Check {
	start := time.Now()
	status, message, metadata := c.check(ctx)
	return Check{
		Status:      status,
		Message:     message,
		Metadata:    metadata,
		LastChecked: start,
		Duration:    time.Since(start),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MarshalJSON customizes JSON marshaling for duration
func (c Check) MarshalJSON() ([]byte, error) {
	type Alias Check
	return json.Marshal(&struct {
		Duration float64 `json:"duration_ms"`
		*Alias
	}{
		Duration: float64(c.Duration.Milliseconds()),
		Alias:    (*Alias)(&c),
	})
}

// MarshalJSON customizes JSON marshaling for response
func (r Response) MarshalJSON() ([]byte, error) {
	type Alias Response
	return json.Marshal(&struct {
		TotalDuration float64 `json:"total_duration_ms"`
		*Alias
	}{
		TotalDuration: float64(r.TotalDuration.Milliseconds()),
		Alias:         (*Alias)(&r),
	})
}
