// Package ledgerclient fetches the decay, treasury and wallet figures an
// epoch transition consumes from the ledger service.
package ledgerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dividend/internal/epoch/models"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/outbound"
	"dividend/pkg/requestcontext"
)

const (
	DefaultTimeout = 5 * time.Second

	collaborator = "ledger"
)

// Client is a JSON client for the ledger's read endpoints:
//
//	GET {base}/v1/epochs/{epoch}/decay     → models.DecayResult
//	GET {base}/v1/epochs/{epoch}/treasury  → models.TreasuryFigures
//	GET {base}/v1/wallets                  → {"wallets": [...]}
type Client struct {
	base  string
	token string
	http  *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithBearerToken authenticates every request.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ledger url %q", baseURL)
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Decay returns the epoch's decay figures. They are validated here so a
// malformed ledger response never reaches the pool.
func (c *Client) Decay(ctx context.Context, epoch int64) (models.DecayResult, error) {
	var out models.DecayResult
	if err := c.get(ctx, "/v1/epochs/"+strconv.FormatInt(epoch, 10)+"/decay", &out); err != nil {
		return models.DecayResult{}, err
	}
	if err := out.Validate(); err != nil {
		return models.DecayResult{}, err
	}
	return out, nil
}

func (c *Client) Treasury(ctx context.Context, epoch int64) (models.TreasuryFigures, error) {
	var out models.TreasuryFigures
	if err := c.get(ctx, "/v1/epochs/"+strconv.FormatInt(epoch, 10)+"/treasury", &out); err != nil {
		return models.TreasuryFigures{}, err
	}
	if err := out.Validate(); err != nil {
		return models.TreasuryFigures{}, err
	}
	return out, nil
}

func (c *Client) Wallets(ctx context.Context) ([]string, error) {
	var out struct {
		Wallets []string `json:"wallets"`
	}
	if err := c.get(ctx, "/v1/wallets", &out); err != nil {
		return nil, err
	}
	return out.Wallets, nil
}

func (c *Client) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return outbound.TransportError(err, collaborator)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return outbound.StatusError(resp, collaborator)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "ledger returned an unreadable response")
	}
	return nil
}
