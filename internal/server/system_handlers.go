package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/aristath/rebalancer/internal/reliability"
	"github.com/aristath/rebalancer/internal/scheduler"
)

// ConnectionStatus reports price feed health
type ConnectionStatus interface {
	Connected() bool
}

// StateReader exposes the orchestrator state
type StateReader interface {
	State() rebalancing.State
}

// BackupLister lists stored ledger backups
type BackupLister interface {
	ListBackups(ctx context.Context) ([]reliability.BackupInfo, error)
}

// JobRunner runs a job outside its schedule
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemDeps are the collaborators of the system handlers.
// Connection, Backups and Runner are optional.
type SystemDeps struct {
	DataDir      string
	Databases    []*database.DB
	Connection   ConnectionStatus
	Orchestrator StateReader
	Backups      BackupLister
	Runner       JobRunner
	Jobs         []scheduler.Job
}

// SystemHandlers handles system-wide monitoring and operations
type SystemHandlers struct {
	dataDir      string
	databases    []*database.DB
	connection   ConnectionStatus
	orchestrator StateReader
	backups      BackupLister
	runner       JobRunner
	jobs         map[string]scheduler.Job
	startedAt    time.Time
	hostStats    func() (float64, float64)
	log          zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		dataDir:      deps.DataDir,
		databases:    deps.Databases,
		connection:   deps.Connection,
		orchestrator: deps.Orchestrator,
		backups:      deps.Backups,
		runner:       deps.Runner,
		jobs:         make(map[string]scheduler.Job, len(deps.Jobs)),
		startedAt:    time.Now(),
		log:          log.With().Str("handler", "system").Logger(),
	}
	for _, job := range deps.Jobs {
		h.jobs[job.Name()] = job
	}
	h.hostStats = h.getSystemStats
	return h
}

// RegisterRoutes registers the /system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)
		r.Get("/backups", h.HandleListBackups)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.HandleJobsStatus)
			r.Post("/{name}", h.HandleTriggerJob)
		})
	})
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status         string  `json:"status"`
	Connection     string  `json:"connection"`
	Connected      bool    `json:"connected"`
	ExecutionState string  `json:"execution_state"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	Goroutines     int     `json:"goroutines"`
	GoVersion      string  `json:"go_version"`
	LastChecked    string  `json:"last_checked"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB   float64 `json:"data_dir_mb"`
	AvailableMB float64 `json:"available_mb,omitempty"`
	UsedPercent float64 `json:"used_percent,omitempty"`
}

// JobsStatusResponse lists the jobs that can be triggered manually
type JobsStatusResponse struct {
	Jobs []string `json:"jobs"`
}

// SystemStatus returns a snapshot of the current system status
func (h *SystemHandlers) SystemStatus() SystemStatusResponse {
	connected := h.connection != nil && h.connection.Connected()
	connection := "DISCONNECTED"
	if connected {
		connection = "CONNECTED"
	}
	state := ""
	if h.orchestrator != nil {
		state = string(h.orchestrator.State())
	}
	cpuPercent, memPercent := h.hostStats()

	return SystemStatusResponse{
		Status:         "healthy",
		Connection:     connection,
		Connected:      connected,
		ExecutionState: state,
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		Goroutines:     runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
		LastChecked:    time.Now().Format(time.RFC3339),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.SystemStatus())
}

// HandleDatabaseStats returns database file sizes
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	response := DatabaseStatsResponse{
		Databases:   []DBInfo{},
		LastChecked: time.Now().Format(time.RFC3339),
	}
	for _, db := range h.databases {
		if db == nil {
			continue
		}
		info, err := os.Stat(db.Path())
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to stat database file")
			continue
		}
		sizeMB := float64(info.Size()) / 1024 / 1024
		response.TotalSizeMB += sizeMB
		response.Databases = append(response.Databases, DBInfo{
			Name:   db.Name(),
			Path:   db.Path(),
			SizeMB: sizeMB,
		})
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDiskUsage returns data directory size and free space
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	response := DiskUsageResponse{DataDirMB: h.getDirSize(h.dataDir)}
	if usage, err := disk.Usage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get filesystem usage")
	} else {
		response.AvailableMB = float64(usage.Free) / 1024 / 1024
		response.UsedPercent = usage.UsedPercent
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Ledger backups are not enabled"})
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to list backups"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	h.writeJSON(w, http.StatusOK, JobsStatusResponse{Jobs: names})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok || h.runner == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown job: " + name})
		return
	}

	if err := h.runner.RunNow(job); err != nil {
		var batchErr *rebalancing.BatchError
		if errors.As(err, &batchErr) {
			h.log.Warn().Err(err).Str("job", name).Msg("Triggered job aborted a batch")
		} else {
			h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		}
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"job":    name,
			"error":  err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"job":     name,
		"message": "Job completed",
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats samples CPU over 100ms and reads memory usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
