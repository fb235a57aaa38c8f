package server

import (
	"context"
	"time"

	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/rs/zerolog"
)

// StatusMonitor periodically samples host resource usage into the metrics registry
type StatusMonitor struct {
	systemHandlers *SystemHandlers
	metrics        *metrics.Registry
	log            zerolog.Logger
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(systemHandlers *SystemHandlers, m *metrics.Registry, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		systemHandlers: systemHandlers,
		metrics:        m,
		log:            log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic sampling until ctx is cancelled
func (m *StatusMonitor) Start(ctx context.Context, interval time.Duration) {
	go m.monitor(ctx, interval)
}

func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *StatusMonitor) sample() {
	cpuPercent, memPercent := m.systemHandlers.hostStats()
	m.metrics.SetHostStats(cpuPercent, memPercent)
	m.log.Debug().
		Float64("cpu_percent", cpuPercent).
		Float64("memory_percent", memPercent).
		Msg("Host stats sampled")
}
