// Package client submits the orchestrator's epoch attestations, either to a
// remote ledger endpoint over HTTP or to the local attestation service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dividend/internal/attestation/models"
	"dividend/internal/attestation/verifier"
	dErrors "dividend/pkg/domain-errors"
	"dividend/pkg/platform/outbound"
	"dividend/pkg/requestcontext"
)

const DefaultTimeout = 10 * time.Second

// HTTPSubmitter signs and POSTs attestations to a remote endpoint.
type HTTPSubmitter struct {
	url    string
	signer *verifier.Signer
	client *http.Client
}

func NewHTTPSubmitter(url string, signer *verifier.Signer, timeout time.Duration) *HTTPSubmitter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSubmitter{
		url:    url,
		signer: signer,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPSubmitter) Submit(ctx context.Context, sub models.Submission) (models.Result, error) {
	body, err := encode(ctx, sub)
	if err != nil {
		return models.Result{}, err
	}
	headers, err := c.signer.Sign(body)
	if err != nil {
		return models.Result{}, fmt.Errorf("sign attestation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.Result{}, fmt.Errorf("build attestation request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Result{}, outbound.TransportError(err, "attestation endpoint")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return models.Result{}, dErrors.Wrap(outbound.ReadRemoteError(resp), dErrors.CodeSignatureVerificationFailed, "attestation endpoint rejected the signatures")
	case resp.StatusCode == http.StatusLocked:
		return models.Result{}, dErrors.Wrap(outbound.ReadRemoteError(resp), dErrors.CodeGIBelowHalt, "attestation endpoint enforced the GI floor")
	case resp.StatusCode >= 300:
		return models.Result{}, outbound.StatusError(resp, "attestation endpoint")
	}

	var res models.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "attestation endpoint returned an unreadable response")
	}
	return res, nil
}

type localService interface {
	Submit(ctx context.Context, headers http.Header, body []byte) (models.Result, models.Verification, error)
}

// InProcessSubmitter signs attestations and hands them to the local service
// through the same verification path remote submitters use.
type InProcessSubmitter struct {
	service localService
	signer  *verifier.Signer
}

func NewInProcessSubmitter(service localService, signer *verifier.Signer) *InProcessSubmitter {
	return &InProcessSubmitter{service: service, signer: signer}
}

func (c *InProcessSubmitter) Submit(ctx context.Context, sub models.Submission) (models.Result, error) {
	body, err := encode(ctx, sub)
	if err != nil {
		return models.Result{}, err
	}
	headers, err := c.signer.Sign(body)
	if err != nil {
		return models.Result{}, fmt.Errorf("sign attestation: %w", err)
	}
	res, _, err := c.service.Submit(ctx, headers, body)
	return res, err
}

// encode stamps an unset IssuedAt with the current time so the signatures
// cover it.
func encode(ctx context.Context, sub models.Submission) ([]byte, error) {
	if sub.IssuedAt.IsZero() {
		sub.IssuedAt = requestcontext.Now(ctx).UTC()
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode attestation: %w", err)
	}
	return body, nil
}
