// Package trading records trade receipts and routes rebalance actions to
// venue executors.
package trading

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// tradeLogColumns is the column list shared by every query.
// Order must match scanTradeLog.
const tradeLogColumns = `id, timestamp, exchange, pair, side, amount, price, total_usd, status, tx_hash, error, batch_id`

// TradeLogRepository is the append-only receipt store in ledger.db.
// The schema rejects UPDATE and DELETE; this type only inserts and reads.
type TradeLogRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewTradeLogRepository creates a new trade log repository
func NewTradeLogRepository(ledgerDB *sql.DB, log zerolog.Logger) *TradeLogRepository {
	return &TradeLogRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "trade_log").Logger(),
	}
}

// Append inserts a receipt. A missing ID is generated.
func (r *TradeLogRepository) Append(ctx context.Context, entry domain.TradeLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("failed to append trade log: %w", err)
	}

	_, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO trade_logs (`+tradeLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Timestamp.UnixMilli(),
		string(entry.Venue),
		entry.Pair,
		string(entry.Side),
		entry.Amount,
		entry.Price,
		entry.TotalUSD,
		string(entry.Status),
		nullString(entry.TxHash),
		nullString(entry.Error),
		nullString(entry.BatchID),
	)
	if err != nil {
		return fmt.Errorf("failed to append trade log %s: %w", entry.ID, err)
	}

	r.log.Debug().
		Str("trade_id", entry.ID).
		Str("pair", entry.Pair).
		Str("side", string(entry.Side)).
		Str("status", string(entry.Status)).
		Msg("Trade receipt appended")
	return nil
}

// ListAll returns every receipt, newest first
func (r *TradeLogRepository) ListAll(ctx context.Context) ([]domain.TradeLog, error) {
	return r.GetHistory(ctx, 0)
}

// GetHistory returns up to limit receipts, newest first. limit ≤ 0 means all.
func (r *TradeLogRepository) GetHistory(ctx context.Context, limit int) ([]domain.TradeLog, error) {
	query := `SELECT ` + tradeLogColumns + ` FROM trade_logs ORDER BY timestamp DESC, seq DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.TradeLog, 0)
	for rows.Next() {
		entry, err := scanTradeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade log: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade logs: %w", err)
	}
	return logs, nil
}

// GetByBatch returns the receipts of one batch in execution order
func (r *TradeLogRepository) GetByBatch(ctx context.Context, batchID string) ([]domain.TradeLog, error) {
	rows, err := r.ledgerDB.QueryContext(ctx,
		`SELECT `+tradeLogColumns+` FROM trade_logs WHERE batch_id = ? ORDER BY seq ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch %s: %w", batchID, err)
	}
	defer rows.Close()

	logs := make([]domain.TradeLog, 0)
	for rows.Next() {
		entry, err := scanTradeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade log: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade logs: %w", err)
	}
	return logs, nil
}

// Count returns the number of receipts
func (r *TradeLogRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.ledgerDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trade logs: %w", err)
	}
	return count, nil
}

func scanTradeLog(rows *sql.Rows) (domain.TradeLog, error) {
	var entry domain.TradeLog
	var timestamp int64
	var venue, side, status string
	var txHash, errText, batchID sql.NullString

	if err := rows.Scan(
		&entry.ID,
		&timestamp,
		&venue,
		&entry.Pair,
		&side,
		&entry.Amount,
		&entry.Price,
		&entry.TotalUSD,
		&status,
		&txHash,
		&errText,
		&batchID,
	); err != nil {
		return domain.TradeLog{}, err
	}

	entry.Timestamp = time.UnixMilli(timestamp).UTC()
	entry.Venue = domain.Venue(venue)
	entry.Side = domain.Side(side)
	entry.Status = domain.TradeStatus(status)
	entry.TxHash = txHash.String
	entry.Error = errText.String
	entry.BatchID = batchID.String
	return entry, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
