// Package eligibility decides whether a wallet may receive a UBI payout.
// Identity, residency and sybil checks are collaborator concerns behind
// narrow ports; this package only combines their answers.
package eligibility

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/requestcontext"
)

type KYCProvider interface {
	Verified(ctx context.Context, wallet string) (bool, error)
}

type ResidencyProvider interface {
	Resident(ctx context.Context, wallet string) (bool, error)
}

type SybilChecker interface {
	Clear(ctx context.Context, wallet string) (bool, error)
}

// WalletInfo is what the ledger knows about a wallet.
type WalletInfo struct {
	CreatedAt     time.Time
	ActivityCount int
}

type WalletInfoProvider interface {
	WalletInfo(ctx context.Context, wallet string) (WalletInfo, error)
}

// Requirements records which conditions a wallet met.
type Requirements struct {
	KYC           bool `json:"kyc"`
	WalletAgeDays int  `json:"wallet_age_days"`
	WalletAgeMet  bool `json:"wallet_age_met"`
	MinActivity   bool `json:"min_activity"`
	Residency     bool `json:"residency"`
	SybilCheck    bool `json:"sybil_check"`
}

// Result is derived per query and never persisted.
type Result struct {
	Wallet       string       `json:"wallet"`
	Eligible     bool         `json:"eligible"`
	Reason       string       `json:"reason,omitempty"`
	Requirements Requirements `json:"requirements"`
}

type Thresholds struct {
	MinWalletAgeDays int
	MinActivity      int
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinWalletAgeDays: 30, MinActivity: 5}
}

type Service struct {
	kyc        KYCProvider
	residency  ResidencyProvider
	wallets    WalletInfoProvider
	sybil      SybilChecker
	thresholds Thresholds
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithThresholds(t Thresholds) Option {
	return func(s *Service) {
		s.thresholds = t
	}
}

func New(kyc KYCProvider, residency ResidencyProvider, wallets WalletInfoProvider, sybil SybilChecker, opts ...Option) *Service {
	s := &Service{
		kyc:        kyc,
		residency:  residency,
		wallets:    wallets,
		sybil:      sybil,
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check queries every provider concurrently and combines the answers. The
// first unmet requirement, in a fixed order, becomes the Reason.
func (s *Service) Check(ctx context.Context, wallet string) (Result, error) {
	if wallet == "" {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "wallet is required")
	}

	var (
		req  Requirements
		info WalletInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		req.KYC, err = s.kyc.Verified(gctx, wallet)
		return err
	})
	g.Go(func() (err error) {
		req.Residency, err = s.residency.Resident(gctx, wallet)
		return err
	})
	g.Go(func() (err error) {
		req.SybilCheck, err = s.sybil.Clear(gctx, wallet)
		return err
	})
	g.Go(func() (err error) {
		info, err = s.wallets.WalletInfo(gctx, wallet)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "eligibility provider failed")
	}

	now := requestcontext.Now(ctx)
	if !info.CreatedAt.IsZero() && info.CreatedAt.Before(now) {
		req.WalletAgeDays = int(now.Sub(info.CreatedAt).Hours() / 24)
	}
	req.WalletAgeMet = req.WalletAgeDays >= s.thresholds.MinWalletAgeDays
	req.MinActivity = info.ActivityCount >= s.thresholds.MinActivity

	res := Result{Wallet: wallet, Requirements: req, Reason: firstUnmet(req)}
	res.Eligible = res.Reason == ""
	return res, nil
}

// Eligible filters wallets down to the eligible ones. A provider failure on
// any wallet fails the whole call.
func (s *Service) Eligible(ctx context.Context, wallets []string) ([]string, error) {
	out := make([]string, 0, len(wallets))
	for _, w := range wallets {
		res, err := s.Check(ctx, w)
		if err != nil {
			return nil, err
		}
		if res.Eligible {
			out = append(out, w)
		} else {
			s.logger.DebugContext(ctx, "wallet not eligible", "wallet", w, "reason", res.Reason)
		}
	}
	return out, nil
}

func firstUnmet(r Requirements) string {
	switch {
	case !r.KYC:
		return "kyc_not_verified"
	case !r.WalletAgeMet:
		return "wallet_too_new"
	case !r.MinActivity:
		return "insufficient_activity"
	case !r.Residency:
		return "residency_not_met"
	case !r.SybilCheck:
		return "sybil_check_failed"
	default:
		return ""
	}
}
