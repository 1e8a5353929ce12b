package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHealthResponse reports process and host health for the monitoring
// dashboard.
type SystemHealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   uint64  `json:"heap_alloc_mb"`
	Database      string  `json:"database"`
	Timestamp     string  `json:"timestamp"`
}

// handleSystemHealth returns host and process health.
// GET /api/system/health
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	resp := SystemHealthResponse{
		Status:     "healthy",
		Goroutines: runtime.NumGoroutine(),
		Database:   "ok",
		Timestamp:  time.Now().Format(time.RFC3339),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	resp.HeapAllocMB = m.HeapAlloc / 1024 / 1024

	if uptime, err := host.Uptime(); err == nil {
		resp.UptimeSeconds = uptime
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = vm.UsedPercent
		resp.MemoryUsedMB = vm.Used / 1024 / 1024
	}

	if s.db != nil {
		if err := s.db.Conn().Ping(); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}
