package ledgerclient

import (
	"context"
	"slices"

	"dividend/internal/epoch/models"
)

// Static serves fixed figures. Used in development and tests when no ledger
// URL is configured.
type Static struct {
	DecayResult models.DecayResult
	Figures     models.TreasuryFigures
	WalletList  []string
}

func (s *Static) Decay(context.Context, int64) (models.DecayResult, error) {
	if err := s.DecayResult.Validate(); err != nil {
		return models.DecayResult{}, err
	}
	return s.DecayResult, nil
}

func (s *Static) Treasury(context.Context, int64) (models.TreasuryFigures, error) {
	if err := s.Figures.Validate(); err != nil {
		return models.TreasuryFigures{}, err
	}
	return s.Figures, nil
}

func (s *Static) Wallets(context.Context) ([]string, error) {
	return slices.Clone(s.WalletList), nil
}
