package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dividend/internal/integrity/models"
)

// PostgresStore persists samples in gi_samples with retention pruning.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, sample models.Sample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gi_samples (recorded_at, value, weight, source)
		VALUES ($1, $2, $3, $4)
	`, sample.Timestamp, sample.Value, sample.Weight, sample.Source)
	if err != nil {
		return fmt.Errorf("insert gi sample: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context) (models.Sample, bool, error) {
	var sample models.Sample
	err := s.db.QueryRowContext(ctx, `
		SELECT recorded_at, value, weight, source
		FROM gi_samples
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`).Scan(&sample.Timestamp, &sample.Value, &sample.Weight, &sample.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sample{}, false, nil
	}
	if err != nil {
		return models.Sample{}, false, fmt.Errorf("select latest gi sample: %w", err)
	}
	return sample, true, nil
}

func (s *PostgresStore) Since(ctx context.Context, from time.Time) ([]models.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, value, weight, source
		FROM gi_samples
		WHERE recorded_at >= $1
		ORDER BY recorded_at, id
	`, from)
	if err != nil {
		return nil, fmt.Errorf("select gi samples: %w", err)
	}
	defer rows.Close()

	var out []models.Sample
	for rows.Next() {
		var sample models.Sample
		if err := rows.Scan(&sample.Timestamp, &sample.Value, &sample.Weight, &sample.Source); err != nil {
			return nil, fmt.Errorf("scan gi sample: %w", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gi samples: %w", err)
	}
	return out, nil
}

// Prune deletes samples recorded before the cutoff and returns how many went.
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM gi_samples WHERE recorded_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune gi samples: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune gi samples: %w", err)
	}
	return n, nil
}
