package handler

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/storepilot/storepilot/internal/health"
)

// SystemHandler serves the operational surfaces: aggregated health and the
// JSON metrics summary.
type SystemHandler struct {
	monitor   *health.Monitor
	startedAt time.Time
	logger    *slog.Logger
}

func NewSystemHandler(monitor *health.Monitor, startedAt time.Time, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{monitor: monitor, startedAt: startedAt, logger: logger}
}

type healthResponse struct {
	Status       string                   `json:"status"`
	Timestamp    time.Time                `json:"timestamp"`
	Dependencies []health.BreakerSnapshot `json:"dependencies"`
}

type memoryUsage struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

type metricsJSONResponse struct {
	Uptime          string                   `json:"uptime"`
	MemoryUsage     memoryUsage              `json:"memoryUsage"`
	CircuitBreakers []health.BreakerSnapshot `json:"circuitBreakers"`
	Goroutines      int                      `json:"goroutines"`
}

// Health reports 200 when every dependency's circuit is closed and 503 when
// degraded. Degraded is distinct from a hard failure: the body always
// carries the per-dependency detail.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC(),
		Dependencies: h.monitor.Snapshot(),
	}
	status := http.StatusOK
	if !h.monitor.Healthy() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeResponse(w, status, resp)
}

// MetricsJSON is the admin-only JSON metrics summary.
func (h *SystemHandler) MetricsJSON(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeResponse(w, http.StatusOK, metricsJSONResponse{
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
		MemoryUsage: memoryUsage{
			AllocBytes:      mem.Alloc,
			TotalAllocBytes: mem.TotalAlloc,
			SysBytes:        mem.Sys,
			NumGC:           mem.NumGC,
		},
		CircuitBreakers: h.monitor.Snapshot(),
		Goroutines:      runtime.NumGoroutine(),
	})
}
