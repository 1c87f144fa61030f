package wallet

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Loopback acknowledges every payout locally. It stands in for the provider
// in development when no provider URL is configured.
type Loopback struct {
	logger *slog.Logger
}

func NewLoopback(logger *slog.Logger) *Loopback {
	return &Loopback{logger: logger}
}

func (l *Loopback) Send(ctx context.Context, req Request) (Ack, error) {
	ack := Ack{TxID: "loopback-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.IdempotencyKey)).String()}
	if l.logger != nil {
		l.logger.InfoContext(ctx, "loopback payout acknowledged",
			"wallet", req.Wallet,
			"amount_shards", req.AmountShards,
			"idempotency_key", req.IdempotencyKey,
			"tx_id", ack.TxID,
		)
	}
	return ack, nil
}
