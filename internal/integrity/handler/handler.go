package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dividend/internal/epoch/freeze"
	"dividend/internal/integrity/models"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/httputil"
	"dividend/pkg/requestcontext"
)

type Service interface {
	RecordSample(ctx context.Context, token freeze.WriteToken, value float64, weight *float64, ts *time.Time, source string) (models.Sample, error)
	Spot(ctx context.Context) (models.Spot, error)
	TimeWeightedAverage(ctx context.Context, lookbackDays, minSamples int) (models.Aggregate, error)
}

// Handler exposes GI ingestion and queries.
type Handler struct {
	service             Service
	logger              *slog.Logger
	defaultLookbackDays int
	defaultMinSamples   int
}

func New(service Service, logger *slog.Logger, defaultLookbackDays, defaultMinSamples int) *Handler {
	return &Handler{
		service:             service,
		logger:              logger,
		defaultLookbackDays: defaultLookbackDays,
		defaultMinSamples:   defaultMinSamples,
	}
}

// Register mounts the read routes. The write route is mounted separately so
// the caller can wrap it in the maintenance guard.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/gi/spot", h.HandleSpot)
	r.Get("/v1/gi/twa", h.HandleTWA)
}

func (h *Handler) RegisterWrites(r chi.Router) {
	r.Post("/v1/gi/samples", h.HandleRecordSample)
}

// HandleRecordSample handles POST /v1/gi/samples.
func (h *Handler) HandleRecordSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RecordSampleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sample, err := h.service.RecordSample(ctx, freeze.TokenFrom(ctx), *req.Value, req.Weight, req.Timestamp, req.Source)
	if err != nil {
		h.logger.WarnContext(ctx, "gi sample rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sample)
}

// HandleSpot handles GET /v1/gi/spot.
func (h *Handler) HandleSpot(w http.ResponseWriter, r *http.Request) {
	spot, err := h.service.Spot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, spot)
}

// HandleTWA handles GET /v1/gi/twa?lookback_days=&min_samples=.
func (h *Handler) HandleTWA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lookback, err := intParam(r, "lookback_days", h.defaultLookbackDays)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	minSamples, err := intParam(r, "min_samples", h.defaultMinSamples)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	agg, err := h.service.TimeWeightedAverage(ctx, lookback, minSamples)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNoSamplesInWindow) {
			h.logger.ErrorContext(ctx, "twa computation failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TWAResponse{Aggregate: agg})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be an integer")
	}
	return v, nil
}
