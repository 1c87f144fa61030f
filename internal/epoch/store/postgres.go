package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dividend/internal/epoch/models"
	"dividend/internal/platform/postgres"
	"dividend/internal/ubi/pool"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/platform/tx"
)

const (
	epochColumns  = `number, month_key, state, decayed_shards, reabsorbed_shards, gi_used, pool, run_id, reason, last_error, attestation_error, created_at, updated_at`
	runColumns    = `id, epoch, month_key, started_at, finished_at, status, gi_used, pool_total, per_capita, recipients, meta`
	payoutColumns = `id, run_id, wallet, amount_shards, status, reason, tx_id, created_at, sent_at`
)

// PostgresStore persists epochs, runs and payouts. Writes join the
// transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LatestEpoch(ctx context.Context) (models.Epoch, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+epochColumns+` FROM epochs ORDER BY number DESC LIMIT 1`)
	e, err := scanEpoch(row)
	if err != nil {
		return models.Epoch{}, fmt.Errorf("select latest epoch: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) GetEpoch(ctx context.Context, number int64) (models.Epoch, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+epochColumns+` FROM epochs WHERE number = $1`, number)
	e, err := scanEpoch(row)
	if err != nil {
		return models.Epoch{}, fmt.Errorf("select epoch %d: %w", number, err)
	}
	return e, nil
}

func (s *PostgresStore) ListEpochs(ctx context.Context, limit int) ([]models.Epoch, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+epochColumns+` FROM epochs ORDER BY number DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	defer rows.Close()

	var out []models.Epoch
	for rows.Next() {
		e, err := scanEpoch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateEpoch(ctx context.Context, e models.Epoch) error {
	poolJSON, err := encodePool(e.Pool)
	if err != nil {
		return err
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO epochs (`+epochColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, e.Number, e.MonthKey, string(e.State), e.Decay.DecayedShards, e.Decay.ReabsorbedShards, e.GIUsed,
		poolJSON, e.RunID, e.Reason, e.LastError, e.AttestationError, e.CreatedAt, e.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("epoch %d: %w", e.Number, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert epoch %d: %w", e.Number, err)
	}
	return nil
}

// SaveEpoch updates the epoch only while its stored state is from.
func (s *PostgresStore) SaveEpoch(ctx context.Context, e models.Epoch, from models.State) error {
	poolJSON, err := encodePool(e.Pool)
	if err != nil {
		return err
	}
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE epochs SET
			state = $2,
			decayed_shards = $3,
			reabsorbed_shards = $4,
			gi_used = $5,
			pool = $6,
			run_id = $7,
			reason = $8,
			last_error = $9,
			attestation_error = $10,
			updated_at = $11
		WHERE number = $1 AND state = $12
	`, e.Number, string(e.State), e.Decay.DecayedShards, e.Decay.ReabsorbedShards, e.GIUsed,
		poolJSON, e.RunID, e.Reason, e.LastError, e.AttestationError, e.UpdatedAt, string(from))
	if err != nil {
		return fmt.Errorf("update epoch %d: %w", e.Number, err)
	}
	return s.expectUpdated(ctx, res, `SELECT EXISTS (SELECT 1 FROM epochs WHERE number = $1)`, e.Number,
		fmt.Sprintf("epoch %d", e.Number))
}

// CreateRun inserts the run and its payouts. Callers that need the two to
// land together run it inside tx.Runner.
func (s *PostgresStore) CreateRun(ctx context.Context, run models.Run, payouts []models.Payout) error {
	db := tx.Executor(ctx, s.db)
	var meta any
	if len(run.Meta) > 0 {
		meta = []byte(run.Meta)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO ubi_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, run.ID, run.Epoch, run.MonthKey, run.StartedAt, run.FinishedAt, string(run.Status),
		run.GIUsed, run.PoolTotal, run.PerCapita, run.Recipients, meta)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("run for epoch %d: %w", run.Epoch, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, p := range payouts {
		_, err := db.ExecContext(ctx, `
			INSERT INTO ubi_payouts (`+payoutColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, p.ID, p.RunID, p.Wallet, p.AmountShards, string(p.Status), p.Reason, p.TxID, p.CreatedAt, p.SentAt)
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("payout for wallet %s: %w", p.Wallet, sentinel.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert payout %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run models.Run, from models.RunStatus) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx,
		`UPDATE ubi_runs SET status = $2, finished_at = $3 WHERE id = $1 AND status = $4`,
		run.ID, string(run.Status), run.FinishedAt, string(from))
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	return s.expectUpdated(ctx, res, `SELECT EXISTS (SELECT 1 FROM ubi_runs WHERE id = $1)`, run.ID,
		"run "+run.ID.String())
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (models.Run, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ubi_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		return models.Run{}, fmt.Errorf("select run %s: %w", id, err)
	}
	return run, nil
}

// LockRun selects the run FOR UPDATE. Outside a transaction the lock is
// released as soon as the statement completes.
func (s *PostgresStore) LockRun(ctx context.Context, id uuid.UUID) (models.Run, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ubi_runs WHERE id = $1 FOR UPDATE`, id)
	run, err := scanRun(row)
	if err != nil {
		return models.Run{}, fmt.Errorf("lock run %s: %w", id, err)
	}
	return run, nil
}

func (s *PostgresStore) RunSummary(ctx context.Context, id uuid.UUID) (models.RunSummary, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return models.RunSummary{}, err
	}
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM ubi_payouts WHERE run_id = $1 GROUP BY status`, id)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("count payouts for run %s: %w", id, err)
	}
	defer rows.Close()

	counts := make(map[models.PayoutStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return models.RunSummary{}, fmt.Errorf("scan payout count: %w", err)
		}
		counts[models.PayoutStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return models.RunSummary{}, fmt.Errorf("count payouts for run %s: %w", id, err)
	}
	return models.RunSummary{Run: run, Counts: counts}, nil
}

func (s *PostgresStore) ListPayouts(ctx context.Context, runID uuid.UUID) ([]models.Payout, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM ubi_payouts WHERE run_id = $1 ORDER BY wallet`, runID)
	if err != nil {
		return nil, fmt.Errorf("list payouts for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.Payout
	for rows.Next() {
		var (
			p      models.Payout
			status string
			sentAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Wallet, &p.AmountShards, &status, &p.Reason, &p.TxID, &p.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		p.Status = models.PayoutStatus(status)
		if sentAt.Valid {
			p.SentAt = &sentAt.Time
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payouts for run %s: %w", runID, err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPayoutDispatched(ctx context.Context, payoutID uuid.UUID) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE ubi_payouts SET status = 'dispatched', reason = ''
		WHERE id = $1 AND status <> 'acked'
	`, payoutID)
	if err != nil {
		return fmt.Errorf("dispatch payout %s: %w", payoutID, err)
	}
	return s.expectUpdated(ctx, res, payoutExists, payoutID, "payout "+payoutID.String())
}

// MarkPayoutAcked is a no-op when the payout is already acked with the same
// transaction id.
func (s *PostgresStore) MarkPayoutAcked(ctx context.Context, payoutID uuid.UUID, txID string, sentAt time.Time) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE ubi_payouts
		SET status = 'acked', tx_id = $2, sent_at = $3, reason = ''
		WHERE id = $1 AND (status <> 'acked' OR tx_id = $2)
	`, payoutID, txID, sentAt)
	if err != nil {
		return fmt.Errorf("ack payout %s: %w", payoutID, err)
	}
	return s.expectUpdated(ctx, res, payoutExists, payoutID, "payout "+payoutID.String())
}

func (s *PostgresStore) MarkPayoutFailed(ctx context.Context, payoutID uuid.UUID, reason string) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE ubi_payouts SET status = 'failed', reason = $2
		WHERE id = $1 AND status <> 'acked'
	`, payoutID, reason)
	if err != nil {
		return fmt.Errorf("fail payout %s: %w", payoutID, err)
	}
	return s.expectUpdated(ctx, res, payoutExists, payoutID, "payout "+payoutID.String())
}

const payoutExists = `SELECT EXISTS (SELECT 1 FROM ubi_payouts WHERE id = $1)`

// expectUpdated tells a missing row apart from one whose state rejected a
// conditional update.
func (s *PostgresStore) expectUpdated(ctx context.Context, res sql.Result, existsQuery string, key any, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx, existsQuery, key).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, sentinel.ErrInvalidState)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEpoch(row scanner) (models.Epoch, error) {
	var (
		e        models.Epoch
		state    string
		poolJSON []byte
		runID    uuid.NullUUID
	)
	err := row.Scan(&e.Number, &e.MonthKey, &state, &e.Decay.DecayedShards, &e.Decay.ReabsorbedShards, &e.GIUsed,
		&poolJSON, &runID, &e.Reason, &e.LastError, &e.AttestationError, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Epoch{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Epoch{}, err
	}
	e.State = models.State(state)
	if len(poolJSON) > 0 {
		var p pool.Result
		if err := json.Unmarshal(poolJSON, &p); err != nil {
			return models.Epoch{}, fmt.Errorf("decode pool: %w", err)
		}
		e.Pool = &p
	}
	if runID.Valid {
		id := runID.UUID
		e.RunID = &id
	}
	return e, nil
}

func scanRun(row scanner) (models.Run, error) {
	var (
		r          models.Run
		status     string
		finishedAt sql.NullTime
		meta       []byte
	)
	err := row.Scan(&r.ID, &r.Epoch, &r.MonthKey, &r.StartedAt, &finishedAt, &status,
		&r.GIUsed, &r.PoolTotal, &r.PerCapita, &r.Recipients, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Run{}, err
	}
	r.Status = models.RunStatus(status)
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	if len(meta) > 0 {
		r.Meta = json.RawMessage(meta)
	}
	return r, nil
}

func encodePool(p *pool.Result) (any, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode pool: %w", err)
	}
	return raw, nil
}
