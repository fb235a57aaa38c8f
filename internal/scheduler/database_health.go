package scheduler

import (
	"database/sql"
	"fmt"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size above which a checkpoint is forced
const walWarnFrames = 1000

// DatabaseHealthJob verifies integrity of config.db and ledger.db and keeps
// their WAL files from growing unbounded
type DatabaseHealthJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewDatabaseHealthJob creates a new DatabaseHealthJob. Nil databases are skipped.
func NewDatabaseHealthJob(configDB, ledgerDB *database.DB, log zerolog.Logger) *DatabaseHealthJob {
	return &DatabaseHealthJob{
		log: log.With().Str("job", "database_health").Logger(),
		databases: map[string]*database.DB{
			"config": configDB,
			"ledger": ledgerDB,
		},
	}
}

// Name returns the job name
func (j *DatabaseHealthJob) Name() string {
	return "database_health"
}

// Run checks integrity first; a corrupted ledger is critical and cannot auto-recover
func (j *DatabaseHealthJob) Run() error {
	checked := 0
	for _, name := range []string{"config", "ledger"} {
		db := j.databases[name]
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := checkIntegrity(db.Conn()); err != nil {
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		j.checkWAL(name, db)
		checked++
	}

	j.log.Debug().Int("checked", checked).Msg("Database health check completed")
	return nil
}

func (j *DatabaseHealthJob) checkWAL(name string, db *database.DB) {
	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	if err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed); err != nil {
		j.log.Warn().Err(err).Str("database", name).Msg("Failed to check WAL checkpoint")
		return
	}

	if frames <= walWarnFrames {
		return
	}

	j.log.Warn().
		Str("database", name).
		Int("wal_frames", frames).
		Int("checkpointed", checkpointed).
		Msg("WAL file is large, forcing checkpoint")
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Error().Err(err).Str("database", name).Msg("Forced checkpoint failed")
	}
}

// checkIntegrity runs SQLite's PRAGMA integrity_check
func checkIntegrity(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}
	return nil
}
