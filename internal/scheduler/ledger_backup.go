package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LedgerBackuper uploads a ledger snapshot
type LedgerBackuper interface {
	CreateAndUpload(ctx context.Context) (string, error)
}

// LedgerBackupJob uploads a snapshot of ledger.db on schedule
type LedgerBackupJob struct {
	backup  LedgerBackuper
	timeout time.Duration
	log     zerolog.Logger
}

// NewLedgerBackupJob creates a new LedgerBackupJob
func NewLedgerBackupJob(backup LedgerBackuper, log zerolog.Logger) *LedgerBackupJob {
	return &LedgerBackupJob{
		backup:  backup,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "ledger_backup").Logger(),
	}
}

// Name returns the job name
func (j *LedgerBackupJob) Name() string {
	return "ledger_backup"
}

// Run executes the backup
func (j *LedgerBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key, err := j.backup.CreateAndUpload(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Str("key", key).Msg("Ledger backup uploaded")
	return nil
}
