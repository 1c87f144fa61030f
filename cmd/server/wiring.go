package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	attestclient "dividend/internal/attestation/client"
	attestmetrics "dividend/internal/attestation/metrics"
	attestservice "dividend/internal/attestation/service"
	atteststore "dividend/internal/attestation/store"
	"dividend/internal/attestation/verifier"
	"dividend/internal/eligibility"
	"dividend/internal/epoch/freeze"
	"dividend/internal/epoch/ledgerclient"
	epochmetrics "dividend/internal/epoch/metrics"
	epochservice "dividend/internal/epoch/service"
	epochstore "dividend/internal/epoch/store"
	integritymetrics "dividend/internal/integrity/metrics"
	integrityservice "dividend/internal/integrity/service"
	integritystore "dividend/internal/integrity/store"
	"dividend/internal/platform/config"
	"dividend/internal/platform/metrics"
	"dividend/internal/platform/postgres"
	"dividend/internal/platform/ratelimit"
	"dividend/internal/platform/redis"
	settlementmetrics "dividend/internal/settlement/metrics"
	settlementservice "dividend/internal/settlement/service"
	settlementstore "dividend/internal/settlement/store"
	"dividend/internal/settlement/wallet"
	"dividend/internal/settlement/worker"
	"dividend/pkg/platform/audit"
	"dividend/pkg/platform/audit/publisher"
	auditkafka "dividend/pkg/platform/audit/store/kafka"
	auditmemory "dividend/pkg/platform/audit/store/memory"
	"dividend/pkg/platform/circuit"
	"dividend/pkg/platform/tx"
)

const (
	auditBuffer         = 1024
	auditPartitions     = 3
	auditReplication    = 1
	breakerFailures     = 5
	breakerCooldown     = 30 * time.Second
	topicProvisionLimit = 10 * time.Second
)

type pruner interface {
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

type app struct {
	router     http.Handler
	worker     *worker.Worker
	aggregator pruner
	ingestion  *ratelimit.Window
	storage    string
	closers    []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores groups the persistence choice so the rest of build does not branch
// on it.
type stores struct {
	epochs      epochservice.Store
	outbox      settlementservice.Store
	samples     integrityservice.SampleStore
	attestation attestservice.Store
	txRunner    tx.Runner
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	reg := metrics.NewRegistry()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	var st stores
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			a.close()
			return nil, err
		}
		st = stores{
			epochs:      epochstore.NewPostgres(db),
			outbox:      settlementstore.NewPostgres(db),
			samples:     integritystore.NewPostgres(db),
			attestation: atteststore.NewPostgres(db),
			txRunner:    tx.NewPostgresRunner(db),
		}
		a.storage = "postgres"
	} else {
		epochs := epochstore.NewInMemory()
		st = stores{
			epochs:      epochs,
			outbox:      settlementstore.NewInMemory(epochs),
			samples:     integritystore.NewRing(cfg.Integrity.RingCapacity),
			attestation: atteststore.NewInMemory(),
			txRunner:    tx.NopRunner{},
		}
		a.storage = "memory"
		log.Warn("DATABASE_URL not set; using in-memory stores")
	}

	guard, err := buildGuard(ctx, cfg, log, a)
	if err != nil {
		a.close()
		return nil, err
	}

	auditor, err := buildAudit(ctx, cfg, log, a)
	if err != nil {
		a.close()
		return nil, err
	}

	aggregator := integrityservice.New(st.samples, guard,
		integrityservice.WithLogger(log),
		integrityservice.WithMetrics(integritymetrics.New(reg)),
		integrityservice.WithDefaultSpot(cfg.Integrity.DefaultSpot),
	)
	a.aggregator = aggregator

	attestSvc, submitter, err := buildAttestation(cfg, log, reg, st.attestation, auditor)
	if err != nil {
		a.close()
		return nil, err
	}

	epochOpts := []epochservice.Option{
		epochservice.WithLogger(log),
		epochservice.WithMetrics(epochmetrics.New(reg)),
		epochservice.WithAuditEmitter(auditor),
		epochservice.WithTxRunner(st.txRunner),
		epochservice.WithAggregationWindow(cfg.Policy.Aggregation.LookbackDays, cfg.Policy.Aggregation.MinSamples),
	}
	reconciler, err := epochservice.NewReconciler(st.epochs, epochOpts...)
	if err != nil {
		a.close()
		return nil, err
	}

	dispatcher, err := settlementservice.New(st.outbox, buildProvider(cfg, log), reconciler,
		settlementservice.WithLogger(log),
		settlementservice.WithMetrics(settlementmetrics.New(reg)),
		settlementservice.WithAuditEmitter(auditor),
		settlementservice.WithRetryPolicy(cfg.Policy.Retry),
		settlementservice.WithTxRunner(st.txRunner),
		settlementservice.WithBreaker(circuit.New("wallet-provider",
			circuit.WithFailureThreshold(breakerFailures),
			circuit.WithCooldown(breakerCooldown),
		)),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	if cfg.Dispatcher.Enabled {
		a.worker, err = worker.New(dispatcher, cfg.Dispatcher.Interval, cfg.Dispatcher.BatchSize, worker.WithLogger(log))
		if err != nil {
			a.close()
			return nil, err
		}
	}

	collab, err := buildCollaborators(cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}
	collab.Aggregator = aggregator
	collab.Attestor = submitter

	orchestrator, err := epochservice.New(st.epochs, guard, collab, dispatcher, cfg.Policy.UBI,
		append(epochOpts, epochservice.WithReconciler(reconciler))...)
	if err != nil {
		a.close()
		return nil, err
	}

	var limiter *ratelimit.Middleware
	if cfg.RateLimit.Limit > 0 && cfg.RateLimit.Window > 0 {
		a.ingestion = ratelimit.NewWindow(cfg.RateLimit.Limit, cfg.RateLimit.Window)
		limiter = ratelimit.New(a.ingestion, log, ratelimit.WithMetrics(ratelimit.NewMetrics(reg)))
	} else {
		limiter = ratelimit.New(nil, log)
	}

	a.router = newRouter(routerDeps{
		cfg:          cfg,
		limiter:      limiter,
		log:          log,
		registry:     reg,
		guard:        guard,
		aggregator:   aggregator,
		attestation:  attestSvc,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
	})
	return a, nil
}

// buildGuard shares the freeze flag through Redis when configured.
func buildGuard(ctx context.Context, cfg config.Config, log *slog.Logger, a *app) (freeze.Guard, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Warn("REDIS_URL not set; maintenance freeze is local to this process")
		return freeze.NewMemoryGuard(), nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return freeze.NewRedisGuard(client.Client), nil
}

// buildAudit forwards audit events to Kafka when brokers are configured and
// keeps them in memory otherwise.
func buildAudit(ctx context.Context, cfg config.Config, log *slog.Logger, a *app) (audit.Emitter, error) {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := auditkafka.New(cfg.Kafka.Brokers,
			auditkafka.WithTopic(cfg.Kafka.AuditTopic),
			auditkafka.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)

		pctx, cancel := context.WithTimeout(ctx, topicProvisionLimit)
		defer cancel()
		if err := sink.EnsureTopic(pctx, auditPartitions, auditReplication); err != nil {
			log.Warn("audit topic provisioning failed; relying on broker auto-create", "error", err)
		}
		store = sink
	} else {
		log.Warn("KAFKA_BROKERS not set; audit events are kept in memory")
	}

	pub := publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(log),
	)
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

func buildAttestation(cfg config.Config, log *slog.Logger, reg prometheus.Registerer, store attestservice.Store, auditor audit.Emitter) (*attestservice.Service, epochservice.AttestationSubmitter, error) {
	ac := cfg.Attestation
	keys, err := verifier.NewKeyring(ac.MACKeys, ac.PublicKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("attestation keyring: %w", err)
	}
	svc := attestservice.New(store, verifier.New(keys), cfg.Policy.UBI.HaltMin(),
		attestservice.WithLogger(log),
		attestservice.WithMetrics(attestmetrics.New(reg)),
		attestservice.WithAuditEmitter(auditor),
		attestservice.WithRequiredSigners(ac.RequiredSigners...),
		attestservice.WithCache(attestservice.NewLatestCache()),
	)

	signer, err := verifier.NewSigner(ac.MACSignerID, ac.MACSecret, ac.SigSignerID, ac.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("attestation signer: %w", err)
	}
	if cfg.Ledger.AttestationURL != "" {
		return svc, attestclient.NewHTTPSubmitter(cfg.Ledger.AttestationURL, signer, cfg.Ledger.Timeout), nil
	}
	return svc, attestclient.NewInProcessSubmitter(svc, signer), nil
}

func buildProvider(cfg config.Config, log *slog.Logger) settlementservice.Provider {
	if cfg.Wallet.URL == "" {
		log.Warn("WALLET_PROVIDER_URL not set; payouts are acknowledged by the loopback provider")
		return wallet.NewLoopback(log)
	}
	return wallet.New(cfg.Wallet.URL, cfg.Wallet.SignerID, cfg.Wallet.Secret,
		wallet.WithTimeout(cfg.Wallet.Timeout),
		wallet.WithRateLimit(cfg.Wallet.RatePerSecond, cfg.Wallet.Burst),
	)
}

// buildCollaborators selects the ledger client and eligibility providers.
// Aggregator and Attestor are filled in by the caller.
func buildCollaborators(cfg config.Config, log *slog.Logger) (epochservice.Collaborators, error) {
	static := eligibility.NewStatic()
	elig := eligibility.New(static, static, static, static,
		eligibility.WithLogger(log),
		eligibility.WithThresholds(eligibility.Thresholds{
			MinWalletAgeDays: cfg.Eligibility.MinWalletAgeDays,
			MinActivity:      cfg.Eligibility.MinActivity,
		}),
	)

	if cfg.Ledger.URL == "" {
		log.Warn("LEDGER_URL not set; using static ledger figures")
		ledger := &ledgerclient.Static{}
		return epochservice.Collaborators{Decay: ledger, Treasury: ledger, Wallets: ledger, Eligibility: elig}, nil
	}
	ledger, err := ledgerclient.New(cfg.Ledger.URL,
		ledgerclient.WithTimeout(cfg.Ledger.Timeout),
		ledgerclient.WithBearerToken(cfg.Ledger.Token),
	)
	if err != nil {
		return epochservice.Collaborators{}, err
	}
	return epochservice.Collaborators{Decay: ledger, Treasury: ledger, Wallets: ledger, Eligibility: elig}, nil
}
