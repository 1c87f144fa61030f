package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/requestcontext"
)

type EligibilitySuite struct {
	suite.Suite
	static  *Static
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestEligibilitySuite(t *testing.T) {
	suite.Run(t, new(EligibilitySuite))
}

func (s *EligibilitySuite) SetupTest() {
	s.static = NewStatic()
	s.service = New(s.static, s.static, s.static, s.static)
	s.now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *EligibilitySuite) TestCheck() {
	s.Run("all requirements met", func() {
		s.static.Allow("w1", WalletInfo{CreatedAt: s.now.AddDate(0, 0, -45), ActivityCount: 9})
		res, err := s.service.Check(s.ctx, "w1")
		s.Require().NoError(err)
		s.True(res.Eligible)
		s.Empty(res.Reason)
		s.Equal(45, res.Requirements.WalletAgeDays)
	})

	s.Run("wallet too new", func() {
		s.static.Allow("w2", WalletInfo{CreatedAt: s.now.AddDate(0, 0, -29), ActivityCount: 9})
		res, err := s.service.Check(s.ctx, "w2")
		s.Require().NoError(err)
		s.False(res.Eligible)
		s.Equal("wallet_too_new", res.Reason)
	})

	s.Run("insufficient activity", func() {
		s.static.Allow("w3", WalletInfo{CreatedAt: s.now.AddDate(0, 0, -30), ActivityCount: 4})
		res, err := s.service.Check(s.ctx, "w3")
		s.Require().NoError(err)
		s.Equal("insufficient_activity", res.Reason)
		s.True(res.Requirements.WalletAgeMet)
	})

	s.Run("kyc reported before later failures", func() {
		s.static.Allow("w4", WalletInfo{})
		s.static.SetKYC("w4", false)
		res, err := s.service.Check(s.ctx, "w4")
		s.Require().NoError(err)
		s.Equal("kyc_not_verified", res.Reason)
	})

	s.Run("sybil flagged", func() {
		s.static.Allow("w5", WalletInfo{CreatedAt: s.now.AddDate(-1, 0, 0), ActivityCount: 50})
		s.static.SetSybil("w5", false)
		res, err := s.service.Check(s.ctx, "w5")
		s.Require().NoError(err)
		s.Equal("sybil_check_failed", res.Reason)
	})

	s.Run("empty wallet", func() {
		_, err := s.service.Check(s.ctx, "")
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

type brokenKYC struct{}

func (brokenKYC) Verified(context.Context, string) (bool, error) {
	return false, errors.New("kyc backend down")
}

func (s *EligibilitySuite) TestProviderFailure() {
	svc := New(brokenKYC{}, s.static, s.static, s.static)
	_, err := svc.Check(s.ctx, "w1")
	s.True(dErrors.Is(err, dErrors.CodeProviderUnavailable))
}

func (s *EligibilitySuite) TestEligibleFilters() {
	s.static.Allow("a", WalletInfo{CreatedAt: s.now.AddDate(0, -2, 0), ActivityCount: 10})
	s.static.Allow("b", WalletInfo{CreatedAt: s.now, ActivityCount: 10})
	got, err := s.service.Eligible(s.ctx, []string{"a", "b", "c"})
	s.Require().NoError(err)
	s.Equal([]string{"a"}, got)
}

func (s *EligibilitySuite) TestCustomThresholds() {
	svc := New(s.static, s.static, s.static, s.static, WithThresholds(Thresholds{MinWalletAgeDays: 0, MinActivity: 0}))
	s.static.Allow("fresh", WalletInfo{})
	res, err := svc.Check(s.ctx, "fresh")
	s.Require().NoError(err)
	s.True(res.Eligible)
}
