package eligibility

import (
	"context"
	"sync"
)

// Static answers every port from in-memory sets. Used in development and
// tests; unknown wallets fail every check.
type Static struct {
	mu        sync.RWMutex
	kyc       map[string]bool
	residency map[string]bool
	sybil     map[string]bool
	wallets   map[string]WalletInfo
}

func NewStatic() *Static {
	return &Static{
		kyc:       map[string]bool{},
		residency: map[string]bool{},
		sybil:     map[string]bool{},
		wallets:   map[string]WalletInfo{},
	}
}

// Allow marks wallet as passing every check with the given ledger profile.
func (s *Static) Allow(wallet string, info WalletInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kyc[wallet] = true
	s.residency[wallet] = true
	s.sybil[wallet] = true
	s.wallets[wallet] = info
}

func (s *Static) SetKYC(wallet string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kyc[wallet] = ok
}

func (s *Static) SetSybil(wallet string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sybil[wallet] = ok
}

func (s *Static) Verified(_ context.Context, wallet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kyc[wallet], nil
}

func (s *Static) Resident(_ context.Context, wallet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.residency[wallet], nil
}

func (s *Static) Clear(_ context.Context, wallet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sybil[wallet], nil
}

func (s *Static) WalletInfo(_ context.Context, wallet string) (WalletInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallets[wallet], nil
}
