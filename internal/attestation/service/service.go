// Package service accepts signed epoch attestations, enforces the signer and
// GI floor policies and stores the result idempotently per epoch.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"dividend/internal/attestation/metrics"
	"dividend/internal/attestation/models"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/audit"
	"dividend/pkg/platform/sentinel"
	"dividend/pkg/requestcontext"
)

const (
	reasonRequiredSigner = "required signer not verified"

	// DefaultFreshness bounds how far issued_at may sit from the server clock.
	DefaultFreshness = 10 * time.Minute
)

type Store interface {
	Get(ctx context.Context, epoch int64) (models.Attestation, error)
	Latest(ctx context.Context) (models.Attestation, error)
	Upsert(ctx context.Context, a models.Attestation, now time.Time) (models.StoreOutcome, models.Attestation, error)
}

type SignatureVerifier interface {
	VerifyDualSignatures(headers http.Header, body []byte) (models.Verification, error)
}

type Service struct {
	store           Store
	verifier        SignatureVerifier
	haltMin         float64
	freshness       time.Duration
	requiredSigners []string
	cache           *LatestCache
	logger          *slog.Logger
	metrics         *metrics.Metrics
	auditor         audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditEmitter(e audit.Emitter) Option {
	return func(s *Service) {
		s.auditor = e
	}
}

// WithRequiredSigners names signers that must all verify, in addition to the
// baseline of at least one.
func WithRequiredSigners(signers ...string) Option {
	return func(s *Service) {
		s.requiredSigners = slices.Clone(signers)
	}
}

// WithFreshness sets how far a submission's issued_at may lie from now in
// either direction.
func WithFreshness(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.freshness = window
		}
	}
}

func WithCache(c *LatestCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// New builds the service. haltMin is the GI floor below which no attestation
// is accepted.
func New(store Store, verifier SignatureVerifier, haltMin float64, opts ...Option) *Service {
	s := &Service{
		store:     store,
		verifier:  verifier,
		haltMin:   haltMin,
		freshness: DefaultFreshness,
		cache:     NewLatestCache(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit parses, verifies and stores a signed attestation body. The returned
// Verification is populated whenever verification ran, including on
// rejection, so callers can report which signers held.
func (s *Service) Submit(ctx context.Context, headers http.Header, body []byte) (models.Result, models.Verification, error) {
	var sub models.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		s.metrics.IncrementSubmission("invalid")
		return models.Result{}, models.Verification{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "attestation body is not valid json")
	}
	if err := validate(sub); err != nil {
		s.metrics.IncrementSubmission("invalid")
		return models.Result{}, models.Verification{}, err
	}

	verification, err := s.verifier.VerifyDualSignatures(headers, body)
	if err != nil {
		s.metrics.IncrementSubmission("invalid")
		return models.Result{}, models.Verification{}, err
	}
	for _, f := range verification.Failures {
		s.metrics.IncrementSignatureFailure(string(f.Mechanism))
	}
	for _, required := range s.requiredSigners {
		if !verification.HasSigner(required) {
			verification.Failures = append(verification.Failures, models.Failure{
				Signer:    required,
				Mechanism: models.MechanismPolicy,
				Reason:    reasonRequiredSigner,
			})
		}
	}

	if len(verification.Accepted) == 0 || hasPolicyFailure(verification) {
		s.metrics.IncrementSubmission("rejected")
		s.logSignatureFailure(ctx, sub.Epoch, verification)
		msg := "no signer verified"
		if len(verification.Accepted) > 0 {
			msg = "required signers not verified"
		}
		return models.Result{}, verification, dErrors.New(dErrors.CodeSignatureVerificationFailed, msg)
	}

	if sub.GIUsed < s.haltMin {
		s.metrics.IncrementSubmission("gi_below_halt")
		s.logger.WarnContext(ctx, "attestation rejected below GI halt floor",
			"epoch", sub.Epoch,
			"gi_used", sub.GIUsed,
			"halt_min", s.haltMin,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Result{}, verification, dErrors.New(dErrors.CodeGIBelowHalt, "gi_used is below the halt threshold")
	}

	now := requestcontext.Now(ctx).UTC()
	if age := now.Sub(sub.IssuedAt); age > s.freshness || age < -s.freshness {
		s.metrics.IncrementSubmission("stale")
		s.logger.WarnContext(ctx, "attestation rejected outside the freshness window",
			"epoch", sub.Epoch,
			"issued_at", sub.IssuedAt,
			"window", s.freshness,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Result{}, verification, dErrors.New(dErrors.CodeInvalidInput, "issued_at is outside the accepted window")
	}

	res, err := s.Store(ctx, models.FromSubmission(sub, verification.Accepted))
	if err != nil {
		return models.Result{}, verification, err
	}
	return res, verification, nil
}

// Store upserts an attestation keyed on epoch. Identical content is a no-op;
// different content overwrites and is audited, provided it was issued after
// the stored record.
func (s *Service) Store(ctx context.Context, a models.Attestation) (models.Result, error) {
	a.AcceptedSigners = normalizeSigners(a.AcceptedSigners)
	hash, err := a.ComputeContentHash()
	if err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "attestation content cannot be canonicalized")
	}
	a.ContentHash = hash

	var previousHash string
	if existing, err := s.store.Get(ctx, a.Epoch); err == nil {
		previousHash = existing.ContentHash
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attestation")
	}

	outcome, stored, err := s.store.Upsert(ctx, a, requestcontext.Now(ctx).UTC())
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncrementSubmission("superseded")
		s.logger.WarnContext(ctx, "attestation older than the stored record",
			"epoch", a.Epoch,
			"issued_at", a.IssuedAt,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeConflict,
			"a newer attestation for epoch "+strconv.FormatInt(a.Epoch, 10)+" is already stored")
	}
	if err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attestation")
	}
	s.metrics.IncrementSubmission(string(outcome))

	switch outcome {
	case models.OutcomeCreated:
		audit.LogAudit(ctx, s.logger, s.auditor, audit.Event{
			Action:  string(audit.EventAttestationStored),
			Subject: epochSubject(a.Epoch),
			Epoch:   a.Epoch,
			Actor:   requestcontext.Operator(ctx),
			Details: map[string]string{
				"content_hash":     stored.ContentHash,
				"accepted_signers": strings.Join(stored.AcceptedSigners, ","),
			},
		})
	case models.OutcomeOverwritten:
		audit.LogAudit(ctx, s.logger, s.auditor, audit.Event{
			Action:   string(audit.EventAttestationOverwrite),
			Subject:  epochSubject(a.Epoch),
			Epoch:    a.Epoch,
			Severity: audit.SeverityWarning,
			Actor:    requestcontext.Operator(ctx),
			Details: map[string]string{
				"previous_hash":    previousHash,
				"content_hash":     stored.ContentHash,
				"accepted_signers": strings.Join(stored.AcceptedSigners, ","),
			},
		})
	}

	s.cache.Offer(stored)
	s.metrics.ObserveEpoch(stored.Epoch)
	return models.Result{
		Epoch:           stored.Epoch,
		Status:          outcome,
		AcceptedSigners: stored.AcceptedSigners,
		ContentHash:     stored.ContentHash,
	}, nil
}

func (s *Service) Get(ctx context.Context, epoch int64) (models.Attestation, error) {
	a, err := s.store.Get(ctx, epoch)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Attestation{}, dErrors.New(dErrors.CodeNotFound, "attestation not found")
	}
	if err != nil {
		return models.Attestation{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attestation")
	}
	return a, nil
}

// Latest returns the highest-epoch attestation, from the cache when warm.
func (s *Service) Latest(ctx context.Context) (models.Attestation, error) {
	if a, ok := s.cache.Get(); ok {
		return a, nil
	}
	a, err := s.store.Latest(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Attestation{}, dErrors.New(dErrors.CodeNotFound, "no attestation stored")
	}
	if err != nil {
		return models.Attestation{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read latest attestation")
	}
	s.cache.Offer(a)
	return a, nil
}

func (s *Service) logSignatureFailure(ctx context.Context, epoch int64, v models.Verification) {
	reasons := make([]string, 0, len(v.Failures))
	for _, f := range v.Failures {
		reasons = append(reasons, f.Signer+"/"+string(f.Mechanism)+": "+f.Reason)
	}
	audit.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Action:   string(audit.EventSignatureVerifyFailed),
		Subject:  epochSubject(epoch),
		Epoch:    epoch,
		Severity: audit.SeverityCritical,
		Reason:   strings.Join(reasons, "; "),
		Details: map[string]string{
			"accepted_signers": strings.Join(v.Accepted, ","),
		},
	})
}

func validate(sub models.Submission) error {
	switch {
	case sub.Epoch <= 0:
		return dErrors.New(dErrors.CodeInvalidInput, "epoch must be positive")
	case sub.IssuedAt.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "issued_at is required")
	case math.IsNaN(sub.GIUsed) || sub.GIUsed < 0 || sub.GIUsed > 1:
		return dErrors.New(dErrors.CodeInvalidInput, "gi_used must be in [0,1]")
	case sub.Decay.DecayedShards < 0 || sub.Decay.ReabsorbedShards < 0:
		return dErrors.New(dErrors.CodeInvalidInput, "decay figures must be non-negative")
	case sub.Decay.ReabsorbedShards > sub.Decay.DecayedShards:
		return dErrors.New(dErrors.CodeInvalidInput, "reabsorbed shards exceed decayed shards")
	case sub.UBI.PoolTotal < 0 || sub.UBI.PerCapita < 0 || sub.UBI.Recipients < 0:
		return dErrors.New(dErrors.CodeInvalidInput, "ubi figures must be non-negative")
	}
	if sub.UBI.Recipients > 0 && sub.UBI.PerCapita > sub.UBI.PoolTotal/sub.UBI.Recipients {
		return dErrors.New(dErrors.CodeInvalidInput, "per_capita times recipients exceeds pool_total")
	}
	return nil
}

func hasPolicyFailure(v models.Verification) bool {
	for _, f := range v.Failures {
		if f.Mechanism == models.MechanismPolicy {
			return true
		}
	}
	return false
}

func normalizeSigners(signers []string) []string {
	out := slices.Clone(signers)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}

func epochSubject(epoch int64) string {
	return "epoch:" + strconv.FormatInt(epoch, 10)
}
