package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dividend/internal/epoch/freeze"
	"dividend/internal/epoch/models"
	"dividend/internal/epoch/service"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/httputil"
	"dividend/pkg/requestcontext"
)

type Service interface {
	Transition(ctx context.Context, req service.TransitionRequest) (models.Epoch, error)
	RetryAttestation(ctx context.Context, number int64) (models.Epoch, error)
	Get(ctx context.Context, number int64) (models.Epoch, error)
	List(ctx context.Context, limit int) ([]models.Epoch, error)
	RunSummary(ctx context.Context, runID uuid.UUID) (models.RunSummary, error)
	ReconcileRun(ctx context.Context, runID uuid.UUID) (models.RunSummary, error)
	MaintenanceStatus(ctx context.Context) (freeze.Status, error)
	SetMaintenance(ctx context.Context, frozen bool) (freeze.Status, error)
}

// Handler exposes epoch transitions and the maintenance flag.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the operator routes. The caller wraps them in operator
// auth; they are not maintenance-guarded because the transition owns the
// freeze itself.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/admin/epochs", h.HandleList)
	r.Post("/v1/admin/epochs", h.HandleTransition)
	r.Get("/v1/admin/epochs/{epoch}", h.HandleGet)
	r.Post("/v1/admin/epochs/{epoch}/attest", h.HandleAttest)
	r.Get("/v1/admin/runs/{runID}", h.HandleRun)
	r.Post("/v1/admin/runs/{runID}/reconcile", h.HandleReconcile)
	r.Post("/v1/admin/maintenance", h.HandleSetMaintenance)
}

// RegisterStatus mounts the unauthenticated maintenance status route.
func (h *Handler) RegisterStatus(r chi.Router) {
	r.Get("/v1/maintenance", h.HandleMaintenance)
}

// HandleTransition handles POST /v1/admin/epochs. An empty body runs with
// the configured aggregation window.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req := &TransitionRequest{}
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID); !ok {
			return
		}
	}

	e, err := h.service.Transition(ctx, req.toService())
	if err != nil {
		if e.Number == 0 {
			h.logger.WarnContext(ctx, "epoch transition refused",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.WarnContext(ctx, "epoch transition stopped",
			"request_id", requestID,
			"epoch", e.Number,
			"state", e.State,
			"error", err,
		)
		httputil.WriteErrorWithDetails(w, err, e)
		return
	}

	status := http.StatusCreated
	if e.State != models.StateAttested {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, e)
}

// HandleAttest handles POST /v1/admin/epochs/{epoch}/attest.
func (h *Handler) HandleAttest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, ok := epochParam(w, r)
	if !ok {
		return
	}
	e, err := h.service.RetryAttestation(ctx, number)
	if err != nil {
		h.logger.WarnContext(ctx, "attestation retry failed",
			"request_id", requestcontext.RequestID(ctx),
			"epoch", number,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

// HandleGet handles GET /v1/admin/epochs/{epoch}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	number, ok := epochParam(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

// HandleList handles GET /v1/admin/epochs?limit=N.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer"))
			return
		}
		limit = n
	}
	epochs, err := h.service.List(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if epochs == nil {
		epochs = []models.Epoch{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"epochs": epochs})
}

// HandleRun handles GET /v1/admin/runs/{runID}.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}
	summary, err := h.service.RunSummary(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleReconcile handles POST /v1/admin/runs/{runID}/reconcile.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}
	summary, err := h.service.ReconcileRun(ctx, runID)
	if err != nil {
		h.logger.ErrorContext(ctx, "run reconciliation failed",
			"request_id", requestcontext.RequestID(ctx),
			"run_id", runID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleMaintenance handles GET /v1/maintenance.
func (h *Handler) HandleMaintenance(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.MaintenanceStatus(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// HandleSetMaintenance handles POST /v1/admin/maintenance.
func (h *Handler) HandleSetMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[MaintenanceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	status, err := h.service.SetMaintenance(ctx, req.Frozen)
	if err != nil {
		h.logger.WarnContext(ctx, "maintenance change refused",
			"request_id", requestID,
			"frozen", req.Frozen,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func epochParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "epoch"), 10, 64)
	if err != nil || n <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "epoch must be a positive integer"))
		return 0, false
	}
	return n, true
}

func runIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "run id must be a UUID"))
		return uuid.Nil, false
	}
	return runID, true
}
