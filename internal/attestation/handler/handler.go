package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dividend/internal/attestation/models"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/httputil"
	"dividend/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

type Service interface {
	Submit(ctx context.Context, headers http.Header, body []byte) (models.Result, models.Verification, error)
	Get(ctx context.Context, epoch int64) (models.Attestation, error)
	Latest(ctx context.Context) (models.Attestation, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/attestations", h.HandleSubmit)
	r.Get("/v1/attestations/latest", h.HandleLatest)
	r.Get("/v1/attestations/{epoch}", h.HandleGet)
}

// HandleSubmit handles POST /v1/attestations. The raw body is what the
// signatures cover, so it is read verbatim before decoding.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	res, verification, err := h.service.Submit(ctx, r.Header, body)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeSignatureVerificationFailed) {
			h.logger.WarnContext(ctx, "attestation signature verification failed",
				"request_id", requestID,
				"accepted_signers", verification.Accepted,
				"failures", len(verification.Failures),
			)
			httputil.WriteErrorWithDetails(w, err, verification)
			return
		}
		h.logger.WarnContext(ctx, "attestation rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if res.Status == models.OutcomeCreated {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, res)
}

// HandleGet handles GET /v1/attestations/{epoch}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	epoch, err := strconv.ParseInt(chi.URLParam(r, "epoch"), 10, 64)
	if err != nil || epoch <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "epoch must be a positive integer"))
		return
	}
	a, err := h.service.Get(r.Context(), epoch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// HandleLatest handles GET /v1/attestations/latest.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Latest(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}
