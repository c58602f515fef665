package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/posenv/internal/cache"
	"github.com/aristath/posenv/internal/database"
	"github.com/aristath/posenv/internal/orchestrator"
	"github.com/aristath/posenv/internal/scheduler"
	"github.com/aristath/posenv/internal/status"
)

// HostStats is a point-in-time view of host resource usage.
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
}

// StatusResponse is the body of GET /status and of each /ws/status frame.
type StatusResponse struct {
	ServerStatus    status.ServerPhase     `json:"server_status"`
	StartedAt       time.Time              `json:"started_at"`
	UptimeSeconds   float64                `json:"uptime_seconds"`
	Jobs            []status.JobStatus     `json:"warmup_jobs"`
	Cache           cache.Stats            `json:"cache"`
	Pool            orchestrator.PoolStats `json:"worker_pool"`
	Host            *HostStats             `json:"host,omitempty"`
	Database        *database.Stats        `json:"request_log_db,omitempty"`
	MaintenanceJobs []scheduler.JobInfo    `json:"maintenance_jobs,omitempty"`
}

// handleStatus returns the current status snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.snapshot(r.Context()))
}

func (s *Server) snapshot(ctx context.Context) StatusResponse {
	snap := s.status.Snapshot()
	resp := StatusResponse{
		ServerStatus:  snap.ServerStatus,
		StartedAt:     snap.StartedAt,
		UptimeSeconds: s.now().Sub(snap.StartedAt).Seconds(),
		Jobs:          snap.Jobs,
		Host:          s.hostStats(ctx),
	}
	if s.cache != nil {
		resp.Cache = s.cache.Stats()
	}
	if s.pool != nil {
		resp.Pool = s.pool.Stats()
	}
	if s.maintenance != nil {
		resp.MaintenanceJobs = s.maintenance.Jobs()
	}
	if s.db != nil {
		dbStats, err := s.db.GetStats()
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to get request log database stats")
		} else {
			resp.Database = dbStats
		}
	}
	return resp
}

// sampleHost reads CPU and RAM usage. CPU is sampled over 100ms.
func sampleHost(ctx context.Context) *HostStats {
	stats := &HostStats{}

	cpuPercent, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get memory statistics")
		return stats
	}
	stats.MemoryPercent = memStat.UsedPercent
	stats.MemoryUsedMB = float64(memStat.Used) / 1024 / 1024

	return stats
}
