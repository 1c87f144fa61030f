package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dividend/internal/settlement/models"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/httputil"
	"dividend/pkg/requestcontext"
)

type Service interface {
	Enqueue(ctx context.Context, runID uuid.UUID) (int, error)
	DispatchOnce(ctx context.Context, limit int) (int, error)
	Exhausted(ctx context.Context, limit int) ([]models.Entry, error)
	Entries(ctx context.Context, runID uuid.UUID) ([]models.Entry, error)
	Requeue(ctx context.Context, id uuid.UUID) (models.Entry, error)
	Resolve(ctx context.Context, id uuid.UUID, txID string) (models.Entry, error)
}

// Handler exposes operator controls over the settlement outbox.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/admin/settlement/failed", h.HandleExhausted)
	r.Get("/v1/admin/settlement/runs/{runID}/entries", h.HandleEntries)
}

// RegisterWrites mounts the routes that move money. The caller wraps them in
// the maintenance guard.
func (h *Handler) RegisterWrites(r chi.Router) {
	r.Post("/v1/admin/settlement/runs/{runID}/enqueue", h.HandleEnqueue)
	r.Post("/v1/admin/settlement/dispatch", h.HandleDispatch)
	r.Post("/v1/admin/settlement/entries/{entryID}/requeue", h.HandleRequeue)
	r.Post("/v1/admin/settlement/entries/{entryID}/resolve", h.HandleResolve)
}

// HandleEnqueue handles POST /v1/admin/settlement/runs/{runID}/enqueue.
func (h *Handler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}
	n, err := h.service.Enqueue(ctx, runID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue run",
			"request_id", requestcontext.RequestID(ctx),
			"run_id", runID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EnqueueResponse{RunID: runID.String(), Created: n})
}

// HandleDispatch handles POST /v1/admin/settlement/dispatch.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DispatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	attempted, err := h.service.DispatchOnce(ctx, req.Limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual dispatch failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DispatchResponse{Attempted: attempted})
}

// HandleRequeue handles POST /v1/admin/settlement/entries/{entryID}/requeue.
func (h *Handler) HandleRequeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	e, err := h.service.Requeue(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "requeue refused",
			"request_id", requestcontext.RequestID(ctx),
			"entry_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

// HandleResolve handles POST /v1/admin/settlement/entries/{entryID}/resolve.
// The body names the transaction that settled the payout by hand.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	e, err := h.service.Resolve(ctx, id, req.TxID)
	if err != nil {
		h.logger.WarnContext(ctx, "payout resolution refused",
			"request_id", requestID,
			"entry_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

// HandleExhausted handles GET /v1/admin/settlement/failed?limit=N.
func (h *Handler) HandleExhausted(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer"))
			return
		}
		limit = n
	}
	entries, err := h.service.Exhausted(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
}

// HandleEntries handles GET /v1/admin/settlement/runs/{runID}/entries.
func (h *Handler) HandleEntries(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Entries(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
}

func runIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "run id must be a UUID"))
		return uuid.Nil, false
	}
	return runID, true
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "entry id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func nonNil(entries []models.Entry) []models.Entry {
	if entries == nil {
		return []models.Entry{}
	}
	return entries
}
