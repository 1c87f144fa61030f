// Package wallet is the outbound boundary to the wallet provider. Each payout
// is a signed POST carrying a stable run/payout idempotency key.
package wallet

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"dividend/pkg/canonical"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/outbound"
	"dividend/pkg/requestcontext"
)

const (
	DefaultTimeout = 8 * time.Second

	HeaderSignature      = "X-Signature"
	HeaderSigner         = "X-Signer"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Request is the payload the provider receives.
type Request struct {
	Wallet         string `json:"wallet"`
	AmountShards   int64  `json:"amount_shards"`
	RunID          string `json:"run_id"`
	PayoutID       string `json:"payout_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Ack is the provider's success acknowledgement.
type Ack struct {
	TxID string `json:"tx_id"`
}

// Client signs payout requests with HMAC-SHA256 over the canonical payload.
type Client struct {
	url      string
	signerID string
	secret   []byte
	http     *http.Client
	limiter  *rate.Limiter
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit paces outbound calls. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(url, signerID, secret string, opts ...Option) *Client {
	c := &Client{
		url:      url,
		signerID: signerID,
		secret:   []byte(secret),
		http:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign returns the hex HMAC of the canonical form of payload.
func Sign(secret []byte, payload []byte) (string, error) {
	canon, err := canonical.Transform(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(canon)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Send delivers one payout. Transport timeouts map to DispatchTimeout,
// unreachable or 5xx providers to ProviderUnavailable, and 4xx responses to
// InvalidInput carrying the provider's reason.
func (c *Client) Send(ctx context.Context, req Request) (Ack, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Ack{}, outbound.TransportError(err, "wallet provider")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Ack{}, fmt.Errorf("encode payout: %w", err)
	}
	sig, err := Sign(c.secret, body)
	if err != nil {
		return Ack{}, fmt.Errorf("sign payout: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("build payout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderSigner, c.signerID)
	httpReq.Header.Set(HeaderSignature, sig)
	httpReq.Header.Set(HeaderIdempotencyKey, req.IdempotencyKey)
	if id := requestcontext.RequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Ack{}, outbound.TransportError(err, "wallet provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Ack{}, outbound.StatusError(resp, "wallet provider")
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "wallet provider returned an unreadable ack")
	}
	if ack.TxID == "" {
		return Ack{}, dErrors.New(dErrors.CodeProviderUnavailable, "wallet provider ack has no tx_id")
	}
	return ack, nil
}
