// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/scheduler"
	"github.com/rs/zerolog"
)

// databaseHealthSchedule runs integrity and WAL checks hourly
const databaseHealthSchedule = "0 0 * * * *"

// RegisterJobs creates the jobs and registers them with the scheduler.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{}

	instances.MarketCycle = scheduler.NewMarketCycleJob(scheduler.MarketCycleDeps{
		Source:   container.PriceService,
		Book:     container.Book,
		Engine:   container.Engine,
		Handler:  container.Orchestrator,
		Settings: container.SettingsService,
		Prices:   container.AssetRepo,
		Events:   container.EventManager,
		Metrics:  container.Metrics,
	}, log)
	if err := container.Scheduler.AddJob(everySpec(cfg.PollInterval), instances.MarketCycle); err != nil {
		return nil, fmt.Errorf("failed to register market cycle job: %w", err)
	}

	instances.DatabaseHealth = scheduler.NewDatabaseHealthJob(container.ConfigDB, container.LedgerDB, log)
	if err := container.Scheduler.AddJob(databaseHealthSchedule, instances.DatabaseHealth); err != nil {
		return nil, fmt.Errorf("failed to register database health job: %w", err)
	}

	if container.BackupService != nil {
		instances.LedgerBackup = scheduler.NewLedgerBackupJob(container.BackupService, log)
		if err := container.Scheduler.AddJob(cfg.Backup.Schedule, instances.LedgerBackup); err != nil {
			return nil, fmt.Errorf("failed to register ledger backup job: %w", err)
		}
	}

	log.Info().
		Dur("poll_interval", cfg.PollInterval).
		Bool("ledger_backup", instances.LedgerBackup != nil).
		Msg("Jobs registered")

	return instances, nil
}

// everySpec turns a poll interval into a cron descriptor
func everySpec(interval time.Duration) string {
	return "@every " + interval.String()
}
