package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"categorybot/internal/services"

	"github.com/labstack/echo/v4"
)

const probeTimeout = 3 * time.Second

// Pinger is anything that can report its own reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	store     Pinger
	cache     Pinger
	storage   services.MinioService
	bucket    string
	version   string
	startedAt time.Time
}

// NewHealthHandlers creates a new health handlers instance. cache and
// storage may be nil when those services are not configured.
func NewHealthHandlers(store, cache Pinger, storage services.MinioService, bucket, version string) *HealthHandlers {
	return &HealthHandlers{
		store:     store,
		cache:     cache,
		storage:   storage,
		bucket:    bucket,
		version:   version,
		startedAt: time.Now(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     string                 `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Services   map[string]CheckResult `json:"services"`
	Uptime     string                 `json:"uptime"`
	Version    string                 `json:"version"`
	Goroutines int                    `json:"goroutines"`
}

// CheckResult is the outcome of one dependency probe
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthCheck probes every dependency. A failing optional dependency only
// degrades the status; a failing store makes it unhealthy.
//
//	@Summary	Health check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthStatus
//	@Success	206	{object}	HealthStatus
//	@Failure	503	{object}	HealthStatus
//	@Router		/health [get]
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   make(map[string]CheckResult),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}

	store := h.probe(ctx, h.checkStore)
	health.Services["store"] = store
	if store.Status == "unhealthy" {
		health.Status = "unhealthy"
	}

	for name, check := range map[string]func(context.Context) error{
		"cache":   h.checkCache,
		"storage": h.checkStorage,
	} {
		result := h.probe(ctx, check)
		health.Services[name] = result
		if result.Status == "unhealthy" && health.Status == "healthy" {
			health.Status = "degraded"
		}
	}

	statusCode := http.StatusOK
	switch health.Status {
	case "degraded":
		statusCode = http.StatusPartialContent
	case "unhealthy":
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
//
//	@Summary	Readiness probe
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	map[string]string
//	@Router		/health/ready [get]
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	if result := h.probe(c.Request().Context(), h.checkStore); result.Status != "healthy" {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Category store unavailable",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

// LivenessCheck determines if the application is running (basic liveness probe)
//
//	@Summary	Liveness probe
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/health/live [get]
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandlers) probe(ctx context.Context, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	result := CheckResult{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
	switch {
	case errors.Is(err, errNotConfigured):
		result.Status = "disabled"
	case err != nil:
		result.Status = "unhealthy"
		result.Message = err.Error()
	}
	return result
}

var errNotConfigured = errors.New("not configured")

func (h *HealthHandlers) checkStore(ctx context.Context) error {
	return h.store.Ping(ctx)
}

func (h *HealthHandlers) checkCache(ctx context.Context) error {
	if h.cache == nil {
		return errNotConfigured
	}
	return h.cache.Ping(ctx)
}

func (h *HealthHandlers) checkStorage(ctx context.Context) error {
	if h.storage == nil || h.bucket == "" {
		return errNotConfigured
	}
	if _, err := h.storage.BucketExists(ctx, h.bucket); err != nil {
		return fmt.Errorf("bucket %s: %w", h.bucket, err)
	}
	return nil
}
