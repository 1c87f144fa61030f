package ledgerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend/internal/epoch/models"
	dErrors "dividend/pkg/domain-errors"
)

func ledger(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/epochs/7/decay", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.DecayResult{DecayedShards: 500, ReabsorbedShards: 200})
	})
	mux.HandleFunc("GET /v1/epochs/8/decay", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(models.DecayResult{DecayedShards: 1, ReabsorbedShards: 2})
	})
	mux.HandleFunc("GET /v1/epochs/7/treasury", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(models.TreasuryFigures{NetIssuance: 10, Reserves: 1000, Circulating: 2000})
	})
	mux.HandleFunc("GET /v1/epochs/9/treasury", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance"}`))
	})
	mux.HandleFunc("GET /v1/wallets", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"wallets":["w-1","w-2"]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := ledger(t)
	c, err := New(srv.URL+"/", WithBearerToken("tok"))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("decay", func(t *testing.T) {
		d, err := c.Decay(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(200), d.ReabsorbedShards)
	})

	t.Run("decay figures are validated", func(t *testing.T) {
		_, err := c.Decay(ctx, 8)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	t.Run("treasury", func(t *testing.T) {
		f, err := c.Treasury(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), f.Reserves)
	})

	t.Run("ledger outage", func(t *testing.T) {
		_, err := c.Treasury(ctx, 9)
		assert.True(t, dErrors.Is(err, dErrors.CodeProviderUnavailable))
	})

	t.Run("wallets", func(t *testing.T) {
		w, err := c.Wallets(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"w-1", "w-2"}, w)
	})
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	_, err = c.Wallets(context.Background())
	assert.True(t, dErrors.Is(err, dErrors.CodeDispatchTimeout))
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ledger.internal")
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := &Static{
		DecayResult: models.DecayResult{DecayedShards: 5, ReabsorbedShards: 3},
		WalletList:  []string{"w-1"},
	}
	d, err := s.Decay(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.ReabsorbedShards)

	w, err := s.Wallets(context.Background())
	require.NoError(t, err)
	w[0] = "mutated"
	again, _ := s.Wallets(context.Background())
	assert.Equal(t, "w-1", again[0])
}
