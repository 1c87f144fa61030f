package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dividend/internal/attestation/models"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/platform/tx"
)

// PostgresStore persists attestations in epoch_attestations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `epoch, gi_used, decay, ubi, meta, accepted_signers, content_hash, issued_at, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, epoch int64) (models.Attestation, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM epoch_attestations WHERE epoch = $1`, epoch)
	a, err := scan(row)
	if err != nil {
		return models.Attestation{}, fmt.Errorf("select attestation %d: %w", epoch, err)
	}
	return a, nil
}

func (s *PostgresStore) Latest(ctx context.Context) (models.Attestation, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM epoch_attestations ORDER BY epoch DESC LIMIT 1`)
	a, err := scan(row)
	if err != nil {
		return models.Attestation{}, fmt.Errorf("select latest attestation: %w", err)
	}
	return a, nil
}

// Upsert inserts or overwrites in one statement. The conflict branch only
// fires when the content hash differs and the incoming record was issued
// later. When it returns no row the stored record decides the outcome: same
// hash is unchanged, anything else is an older replay.
func (s *PostgresStore) Upsert(ctx context.Context, a models.Attestation, now time.Time) (models.StoreOutcome, models.Attestation, error) {
	decay, err := json.Marshal(a.Decay)
	if err != nil {
		return "", models.Attestation{}, fmt.Errorf("encode decay: %w", err)
	}
	ubi, err := json.Marshal(a.UBI)
	if err != nil {
		return "", models.Attestation{}, fmt.Errorf("encode ubi: %w", err)
	}
	var meta any
	if len(a.Meta) > 0 {
		meta = []byte(a.Meta)
	}
	signers := a.AcceptedSigners
	if signers == nil {
		signers = []string{}
	}

	var inserted bool
	err = tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO epoch_attestations
			(epoch, gi_used, decay, ubi, meta, accepted_signers, content_hash, issued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (epoch) DO UPDATE SET
			gi_used = EXCLUDED.gi_used,
			decay = EXCLUDED.decay,
			ubi = EXCLUDED.ubi,
			meta = EXCLUDED.meta,
			accepted_signers = EXCLUDED.accepted_signers,
			content_hash = EXCLUDED.content_hash,
			issued_at = EXCLUDED.issued_at,
			updated_at = EXCLUDED.updated_at
		WHERE epoch_attestations.content_hash <> EXCLUDED.content_hash
			AND epoch_attestations.issued_at < EXCLUDED.issued_at
		RETURNING (xmax = 0)
	`, a.Epoch, a.GIUsed, decay, ubi, meta, pq.Array(signers), a.ContentHash, a.IssuedAt.UTC(), now).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := s.Get(ctx, a.Epoch)
		if getErr != nil {
			return "", models.Attestation{}, getErr
		}
		if existing.ContentHash != a.ContentHash {
			return "", models.Attestation{}, fmt.Errorf("attestation %d issued %s is not newer than %s: %w",
				a.Epoch, a.IssuedAt.Format(time.RFC3339), existing.IssuedAt.Format(time.RFC3339), sentinel.ErrConflict)
		}
		return models.OutcomeUnchanged, existing, nil
	}
	if err != nil {
		return "", models.Attestation{}, fmt.Errorf("upsert attestation %d: %w", a.Epoch, err)
	}

	stored, err := s.Get(ctx, a.Epoch)
	if err != nil {
		return "", models.Attestation{}, err
	}
	if inserted {
		return models.OutcomeCreated, stored, nil
	}
	return models.OutcomeOverwritten, stored, nil
}

func scan(row *sql.Row) (models.Attestation, error) {
	var (
		a          models.Attestation
		decay, ubi []byte
		meta       []byte
		signers    []string
	)
	err := row.Scan(&a.Epoch, &a.GIUsed, &decay, &ubi, &meta, pq.Array(&signers), &a.ContentHash, &a.IssuedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attestation{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Attestation{}, err
	}
	if err := json.Unmarshal(decay, &a.Decay); err != nil {
		return models.Attestation{}, fmt.Errorf("decode decay: %w", err)
	}
	if err := json.Unmarshal(ubi, &a.UBI); err != nil {
		return models.Attestation{}, fmt.Errorf("decode ubi: %w", err)
	}
	if len(meta) > 0 {
		a.Meta = json.RawMessage(meta)
	}
	a.AcceptedSigners = signers
	return a, nil
}
