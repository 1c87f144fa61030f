package handler

import (
	"strings"

	dErrors "dividend/pkg/domain-errors"
)

const defaultLimit = 100

type DispatchRequest struct {
	Limit int `json:"limit"`
}

func (r *DispatchRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = defaultLimit
	}
	if r.Limit < 0 {
		return dErrors.New(dErrors.CodeValidation, "limit must be positive")
	}
	return nil
}

type DispatchResponse struct {
	Attempted int `json:"attempted"`
}

type EnqueueResponse struct {
	RunID   string `json:"run_id"`
	Created int    `json:"created"`
}

// ResolveRequest names the transaction an operator used to pay by hand.
type ResolveRequest struct {
	TxID string `json:"tx_id"`
}

func (r *ResolveRequest) Validate() error {
	r.TxID = strings.TrimSpace(r.TxID)
	if r.TxID == "" {
		return dErrors.New(dErrors.CodeValidation, "tx_id is required")
	}
	return nil
}
