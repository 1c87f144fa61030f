package client

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend/internal/attestation/handler"
	"dividend/internal/attestation/models"
	"dividend/internal/attestation/service"
	"dividend/internal/attestation/store"
	"dividend/internal/attestation/verifier"
	dErrors "dividend/pkg/domain-errors"
)

func fixture(t *testing.T, required ...string) (*verifier.Signer, *service.Service) {
	t.Helper()
	seed := make([]byte, 32)
	seed[5] = 7
	signer, err := verifier.NewSigner("treasury", "secret", "auditor", hex.EncodeToString(seed))
	require.NoError(t, err)
	kr, err := verifier.NewKeyring(map[string]string{"treasury": "secret"}, map[string]string{"auditor": signer.PublicKeyHex()})
	require.NoError(t, err)
	svc := service.New(store.NewInMemory(), verifier.New(kr), 0.90,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithRequiredSigners(required...),
	)
	return signer, svc
}

var submission = models.Submission{
	Epoch:  1,
	GIUsed: 0.96,
	Decay:  models.Decay{DecayedShards: 10, ReabsorbedShards: 4},
	UBI:    models.UBI{PoolTotal: 100, PerCapita: 10, Recipients: 10},
}

func TestInProcessSubmitter(t *testing.T) {
	signer, svc := fixture(t, "treasury", "auditor")
	res, err := NewInProcessSubmitter(svc, signer).Submit(context.Background(), submission)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Status)
	assert.Equal(t, []string{"auditor", "treasury"}, res.AcceptedSigners)
}

func TestInProcessSubmitter_IssuedAt(t *testing.T) {
	signer, svc := fixture(t)
	c := NewInProcessSubmitter(svc, signer)

	stale := submission
	stale.IssuedAt = time.Now().Add(-time.Hour)
	_, err := c.Submit(context.Background(), stale)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput), "a preset issued_at is signed as given")

	res, err := c.Submit(context.Background(), submission)
	require.NoError(t, err, "an unset issued_at is stamped with the current time")
	assert.Equal(t, models.OutcomeCreated, res.Status)
}

func TestHTTPSubmitter(t *testing.T) {
	signer, svc := fixture(t, "treasury", "auditor")
	r := chi.NewRouter()
	handler.New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewHTTPSubmitter(srv.URL+"/v1/attestations", signer, time.Second)

	t.Run("accepted", func(t *testing.T) {
		res, err := c.Submit(context.Background(), submission)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCreated, res.Status)
	})

	t.Run("gi floor", func(t *testing.T) {
		low := submission
		low.Epoch = 2
		low.GIUsed = 0.5
		_, err := c.Submit(context.Background(), low)
		assert.True(t, dErrors.Is(err, dErrors.CodeGIBelowHalt))
	})

	t.Run("signatures rejected", func(t *testing.T) {
		macOnly, err := verifier.NewSigner("treasury", "secret", "", "")
		require.NoError(t, err)
		_, err = NewHTTPSubmitter(srv.URL+"/v1/attestations", macOnly, time.Second).Submit(context.Background(), submission)
		assert.True(t, dErrors.Is(err, dErrors.CodeSignatureVerificationFailed))
	})
}

func TestHTTPSubmitter_Unavailable(t *testing.T) {
	signer, _ := fixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPSubmitter(srv.URL, signer, time.Second).Submit(context.Background(), submission)
	assert.True(t, dErrors.Is(err, dErrors.CodeProviderUnavailable))
}

func TestHTTPSubmitter_Timeout(t *testing.T) {
	signer, _ := fixture(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPSubmitter(srv.URL, signer, 50*time.Millisecond).Submit(context.Background(), submission)
	assert.True(t, dErrors.Is(err, dErrors.CodeDispatchTimeout))
}
