package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	attesthandler "dividend/internal/attestation/handler"
	attestservice "dividend/internal/attestation/service"
	"dividend/internal/epoch/freeze"
	epochhandler "dividend/internal/epoch/handler"
	epochservice "dividend/internal/epoch/service"
	integrityhandler "dividend/internal/integrity/handler"
	integrityservice "dividend/internal/integrity/service"
	"dividend/internal/platform/config"
	"dividend/internal/platform/metrics"
	"dividend/internal/platform/middleware"
	"dividend/internal/platform/ratelimit"
	settlementhandler "dividend/internal/settlement/handler"
	settlementservice "dividend/internal/settlement/service"
	"dividend/pkg/platform/httputil"
)

type routerDeps struct {
	cfg          config.Config
	log          *slog.Logger
	limiter      *ratelimit.Middleware
	registry     *prometheus.Registry
	guard        freeze.Guard
	aggregator   *integrityservice.Aggregator
	attestation  *attestservice.Service
	orchestrator *epochservice.Orchestrator
	dispatcher   *settlementservice.Dispatcher
}

// newRouter mounts every module. Sample ingestion and settlement writes need
// a maintenance write token; admin routes need an operator bearer token.
// The unauthenticated ingestion surfaces are rate limited per client IP.
func newRouter(d routerDeps) http.Handler {
	auth := middleware.NewOperatorAuth(d.cfg.Server.OperatorJWTKey, d.cfg.Server.OperatorIssuer)
	integrity := integrityhandler.New(d.aggregator, d.log,
		d.cfg.Policy.Aggregation.LookbackDays, d.cfg.Policy.Aggregation.MinSamples)
	attestations := attesthandler.New(d.attestation, d.log)
	epochs := epochhandler.New(d.orchestrator, d.log)
	settlement := settlementhandler.New(d.dispatcher, d.log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(d.log))
	r.Use(middleware.AccessLog(d.log, metrics.NewHTTP(d.registry)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler(d.registry))

	integrity.Register(r)
	epochs.RegisterStatus(r)

	r.Group(func(r chi.Router) {
		r.Use(d.limiter.Limit("attestations"))
		attestations.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(d.limiter.Limit("samples"))
		r.Use(freeze.RequireWriteToken(d.guard, d.log))
		integrity.RegisterWrites(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth, d.log, middleware.RoleOperator, middleware.RoleAuditor))
		settlement.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth, d.log, middleware.RoleOperator))
		epochs.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(freeze.RequireWriteToken(d.guard, d.log))
			settlement.RegisterWrites(r)
		})
	})
	return r
}
