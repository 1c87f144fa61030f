package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dividend/internal/settlement/models"
	"dividend/internal/settlement/retry"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/platform/tx"
)

// LeaseExpiredReason is recorded on entries whose final claim was abandoned.
const LeaseExpiredReason = "claim lease expired after final attempt"

const entryColumns = `id, run_id, payout_id, wallet, amount_shards, status, attempts, last_error, next_attempt_at, claimed_at, created_at, updated_at`

// PostgresStore is the durable outbox in settlement_outbox.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Enqueue copies every payout of the run into the outbox. The unique
// payout_id makes repeated calls insert nothing.
func (s *PostgresStore) Enqueue(ctx context.Context, runID uuid.UUID, now time.Time) (int, error) {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO settlement_outbox
			(id, run_id, payout_id, wallet, amount_shards, status, attempts, created_at, updated_at)
		SELECT gen_random_uuid(), p.run_id, p.id, p.wallet, p.amount_shards, 'pending', 0, $2, $2
		FROM ubi_payouts p
		WHERE p.run_id = $1
		ORDER BY p.wallet
		ON CONFLICT (payout_id) DO NOTHING
	`, runID, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("enqueue run %s: %w", runID, err)
	}
	return int(n), nil
}

// ClaimBatch selects and claims in a single statement. SKIP LOCKED keeps
// concurrent claimers off each other's rows.
func (s *PostgresStore) ClaimBatch(ctx context.Context, limit int, now time.Time, policy retry.Policy) ([]models.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		UPDATE settlement_outbox o
		SET status = 'claimed',
			attempts = o.attempts + 1,
			claimed_at = $1,
			next_attempt_at = NULL,
			updated_at = $1
		WHERE o.id IN (
			SELECT id FROM settlement_outbox
			WHERE status = 'pending'
			   OR (status = 'failed' AND attempts < $2 AND next_attempt_at <= $1)
			   OR (status = 'claimed' AND attempts < $2 AND claimed_at < $3)
			ORDER BY created_at, id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING o.`+prefixed(entryColumns),
		now, policy.MaxAttempts, policy.LeaseExpiry(now), limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) MarkAcked(ctx context.Context, id uuid.UUID, now time.Time) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE settlement_outbox
		SET status = 'acked', claimed_at = NULL, last_error = '', updated_at = $2
		WHERE id = $1 AND status = 'claimed'
	`, id, now)
	if err != nil {
		return fmt.Errorf("ack outbox entry %s: %w", id, err)
	}
	return expectOne(res, id)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt *time.Time, now time.Time) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE settlement_outbox
		SET status = 'failed', claimed_at = NULL, last_error = $2, next_attempt_at = $3, updated_at = $4
		WHERE id = $1 AND status = 'claimed'
	`, id, lastError, nextAttemptAt, now)
	if err != nil {
		return fmt.Errorf("fail outbox entry %s: %w", id, err)
	}
	return expectOne(res, id)
}

func (s *PostgresStore) FailAbandoned(ctx context.Context, leaseCutoff time.Time, maxAttempts int, now time.Time) ([]models.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		UPDATE settlement_outbox
		SET status = 'failed', claimed_at = NULL, last_error = $4, next_attempt_at = NULL, updated_at = $3
		WHERE status = 'claimed' AND attempts >= $2 AND claimed_at < $1
		RETURNING `+entryColumns,
		leaseCutoff, maxAttempts, now, LeaseExpiredReason)
	if err != nil {
		return nil, fmt.Errorf("fail abandoned outbox entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) ListExhausted(ctx context.Context, maxAttempts, limit int) ([]models.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM settlement_outbox
		WHERE status = 'failed' AND attempts >= $1
		ORDER BY updated_at, id
		LIMIT $2
	`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list exhausted outbox entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM settlement_outbox
		WHERE run_id = $1
		ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outbox entries for run %s: %w", runID, err)
	}
	return scanEntries(rows)
}

// Requeue resets a permanently failed entry to pending with a fresh attempt
// budget.
func (s *PostgresStore) Requeue(ctx context.Context, id uuid.UUID, now time.Time) (models.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		UPDATE settlement_outbox
		SET status = 'pending', attempts = 0, updated_at = $2
		WHERE id = $1 AND status = 'failed' AND next_attempt_at IS NULL
		RETURNING `+entryColumns,
		id, now)
	if err != nil {
		return models.Entry{}, fmt.Errorf("requeue outbox entry %s: %w", id, err)
	}
	return s.single(ctx, rows, id)
}

// Resolve acks a permanently failed entry settled outside the dispatcher.
func (s *PostgresStore) Resolve(ctx context.Context, id uuid.UUID, now time.Time) (models.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		UPDATE settlement_outbox
		SET status = 'acked', updated_at = $2
		WHERE id = $1 AND status = 'failed' AND next_attempt_at IS NULL
		RETURNING `+entryColumns,
		id, now)
	if err != nil {
		return models.Entry{}, fmt.Errorf("resolve outbox entry %s: %w", id, err)
	}
	return s.single(ctx, rows, id)
}

// single returns the one row a conditional update touched, or tells a
// missing entry apart from one in the wrong state.
func (s *PostgresStore) single(ctx context.Context, rows *sql.Rows, id uuid.UUID) (models.Entry, error) {
	entries, err := scanEntries(rows)
	if err != nil {
		return models.Entry{}, err
	}
	if len(entries) == 1 {
		return entries[0], nil
	}
	var exists bool
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM settlement_outbox WHERE id = $1)`, id).Scan(&exists); err != nil {
		return models.Entry{}, fmt.Errorf("outbox entry %s: %w", id, err)
	}
	if !exists {
		return models.Entry{}, fmt.Errorf("outbox entry %s: %w", id, sentinel.ErrNotFound)
	}
	return models.Entry{}, fmt.Errorf("outbox entry %s is not permanently failed: %w", id, sentinel.ErrInvalidState)
}

func scanEntries(rows *sql.Rows) ([]models.Entry, error) {
	defer rows.Close()
	var out []models.Entry
	for rows.Next() {
		var (
			e         models.Entry
			status    string
			next      sql.NullTime
			claimedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.PayoutID, &e.Wallet, &e.AmountShards, &status,
			&e.Attempts, &e.LastError, &next, &claimedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.Status = models.EntryStatus(status)
		if next.Valid {
			t := next.Time
			e.NextAttemptAt = &t
		}
		if claimedAt.Valid {
			t := claimedAt.Time
			e.ClaimedAt = &t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return out, nil
}

func expectOne(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("outbox entry %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("outbox entry %s is not claimed: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

// prefixed qualifies a column list with the o. alias after the first column.
func prefixed(cols string) string {
	return strings.ReplaceAll(cols, ", ", ", o.")
}
