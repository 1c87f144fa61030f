package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend/internal/attestation/models"
	"dividend/pkg/platform/sentinel"
)

var (
	t0 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func record(hash string) models.Attestation {
	return models.Attestation{
		Epoch:           3,
		GIUsed:          0.96,
		Decay:           models.Decay{DecayedShards: 10, ReabsorbedShards: 4},
		UBI:             models.UBI{PoolTotal: 100, PerCapita: 10, Recipients: 10},
		AcceptedSigners: []string{"treasury"},
		ContentHash:     hash,
		IssuedAt:        t0,
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	_, err := s.Latest(ctx)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	outcome, stored, err := s.Upsert(ctx, record("h1"), t0)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)
	assert.Equal(t, t0, stored.CreatedAt)

	outcome, stored, err = s.Upsert(ctx, record("h1"), t1)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnchanged, outcome)
	assert.Equal(t, t0, stored.UpdatedAt, "unchanged resubmission must not touch the record")

	replayed := record("h2")
	_, _, err = s.Upsert(ctx, replayed, t1)
	require.ErrorIs(t, err, sentinel.ErrConflict, "different content issued at the same instant must not overwrite")

	changed := record("h2")
	changed.UBI.PoolTotal = 90
	changed.IssuedAt = t1
	outcome, stored, err = s.Upsert(ctx, changed, t1)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOverwritten, outcome)
	assert.Equal(t, t0, stored.CreatedAt)
	assert.Equal(t, t1, stored.UpdatedAt)
	assert.Equal(t, int64(90), stored.UBI.PoolTotal)

	_, _, err = s.Upsert(ctx, record("h1"), t1.Add(time.Hour))
	require.ErrorIs(t, err, sentinel.ErrConflict, "an older body must not roll back a newer one")
	got, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.ContentHash)

	later := record("h9")
	later.Epoch = 4
	_, _, err = s.Upsert(ctx, later, t1)
	require.NoError(t, err)
	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest.Epoch)

	got, err = s.Get(ctx, 3)
	require.NoError(t, err)
	got.AcceptedSigners[0] = "mutated"
	again, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "treasury", again.AcceptedSigners[0])

	_, err = s.Get(ctx, 99)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

var columns = []string{"epoch", "gi_used", "decay", "ubi", "meta", "accepted_signers", "content_hash", "issued_at", "created_at", "updated_at"}

func row(hash string, updated time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(
		int64(3), 0.96,
		[]byte(`{"decayed_shards":10,"reabsorbed_shards":4}`),
		[]byte(`{"pool_total":100,"per_capita":10,"recipients":10}`),
		[]byte(`{"note":"q1"}`),
		"{auditor,treasury}", hash, t0, t0, updated,
	)
}

func TestPostgresStore_Upsert(t *testing.T) {
	upsert := regexp.QuoteMeta("INSERT INTO epoch_attestations")
	get := regexp.QuoteMeta("FROM epoch_attestations WHERE epoch = $1")

	t.Run("created", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(upsert).
			WithArgs(int64(3), 0.96, sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "h1", t0, t0).
			WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
		mock.ExpectQuery(get).WithArgs(int64(3)).WillReturnRows(row("h1", t0))

		outcome, stored, err := NewPostgres(db).Upsert(context.Background(), record("h1"), t0)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCreated, outcome)
		assert.Equal(t, []string{"auditor", "treasury"}, stored.AcceptedSigners)
		assert.Equal(t, int64(4), stored.Decay.ReabsorbedShards)
		assert.JSONEq(t, `{"note":"q1"}`, string(stored.Meta))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("identical content returns no row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(upsert).WillReturnRows(sqlmock.NewRows([]string{"inserted"}))
		mock.ExpectQuery(get).WithArgs(int64(3)).WillReturnRows(row("h1", t0))

		outcome, stored, err := NewPostgres(db).Upsert(context.Background(), record("h1"), t1)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeUnchanged, outcome)
		assert.Equal(t, t0, stored.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overwrite", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(upsert).WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
		mock.ExpectQuery(get).WithArgs(int64(3)).WillReturnRows(row("h2", t1))

		meta := record("h2")
		meta.IssuedAt = t1
		meta.Meta = json.RawMessage(`{"note":"q1"}`)
		outcome, _, err := NewPostgres(db).Upsert(context.Background(), meta, t1)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeOverwritten, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_UpsertRejectsOlderBody(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("AND epoch_attestations.issued_at < EXCLUDED.issued_at")).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM epoch_attestations WHERE epoch = $1")).
		WithArgs(int64(3)).WillReturnRows(row("h2", t1))

	_, _, err = NewPostgres(db).Upsert(context.Background(), record("h1"), t1)
	require.ErrorIs(t, err, sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY epoch DESC LIMIT 1")).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err = NewPostgres(db).Latest(context.Background())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
