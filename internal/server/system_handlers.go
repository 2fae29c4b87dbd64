package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/scheduler"
)

// SystemDeps are the components whose state the status endpoint reports.
// Only Cache and Limiter are required.
type SystemDeps struct {
	Cache      *cache.Store
	Limiter    *cache.RateLimiter
	Scheduler  *scheduler.Scheduler
	SnapshotDB *database.DB
	Snapshots  SnapshotStore
	Sources    []string
}

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	deps        SystemDeps
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		deps:        deps,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HostStats describes the host the service runs on
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string                `json:"status"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Sources       []string              `json:"sources"`
	Cache         *cache.Stats          `json:"cache,omitempty"`
	RateLimits    []cache.Window        `json:"rate_limits"`
	Jobs          []scheduler.JobStatus `json:"jobs,omitempty"`
	SnapshotDB    *database.Stats       `json:"snapshot_db,omitempty"`
	SnapshotCount *int64                `json:"snapshot_count,omitempty"`
	Host          HostStats             `json:"host"`
}

// HandleSystemStatus returns comprehensive system status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		Sources:       h.deps.Sources,
		RateLimits:    []cache.Window{},
		Host:          h.getHostStats(),
	}
	if response.Sources == nil {
		response.Sources = []string{}
	}

	if h.deps.Cache != nil {
		stats := h.deps.Cache.Stats()
		response.Cache = &stats
	}
	if h.deps.Limiter != nil {
		response.RateLimits = h.deps.Limiter.Windows()
	}
	if h.deps.Scheduler != nil {
		response.Jobs = h.deps.Scheduler.Jobs()
	}
	if h.deps.SnapshotDB != nil {
		stats, err := h.deps.SnapshotDB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get snapshot database stats")
			response.Status = "degraded"
		} else {
			response.SnapshotDB = stats
		}
	}
	if h.deps.Snapshots != nil {
		count, err := h.deps.Snapshots.Count(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count snapshots")
			response.Status = "degraded"
		} else {
			response.SnapshotCount = &count
		}
	}

	writeJSON(w, h.log, http.StatusOK, response)
}

// getHostStats reads CPU and RAM usage percentages.
// CPU is sampled over 100ms so the endpoint stays responsive.
func (h *SystemHandlers) getHostStats() HostStats {
	stats := HostStats{Goroutines: runtime.NumGoroutine()}

	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		stats.MemoryPercent = memStat.UsedPercent
	}

	return stats
}
