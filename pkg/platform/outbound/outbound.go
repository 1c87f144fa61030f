// Package outbound maps failures at outbound HTTP collaborator boundaries
// (wallet provider, ledger, remote attestation endpoint) onto domain errors.
package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	dErrors "dividend/pkg/domain-errors"
)

const maxErrorBody = 4 << 10

// RemoteError is the structured error a collaborator reported.
type RemoteError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
	// Description is the field name used by this service's own error envelope.
	Description string `json:"error_description,omitempty"`
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("status %d: %s", e.Status, e.Code)
	case e.Message != "":
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("status %d", e.Status)
	}
}

// TransportError classifies a failed round trip: deadline or network timeouts
// become DispatchTimeout, everything else ProviderUnavailable.
func TransportError(err error, collaborator string) error {
	if IsTimeout(err) {
		return dErrors.Wrap(err, dErrors.CodeDispatchTimeout, collaborator+" timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, collaborator+" unreachable")
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ReadRemoteError decodes the error body of a non-2xx response. Bodies that
// are not the {error, message} envelope are kept as the message.
func ReadRemoteError(resp *http.Response) *RemoteError {
	re := &RemoteError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(raw) == 0 {
		return re
	}
	if err := json.Unmarshal(raw, re); err != nil || (re.Code == "" && re.Message == "") {
		re.Code = ""
		re.Message = string(raw)
	}
	if re.Message == "" {
		re.Message = re.Description
	}
	return re
}

// StatusError classifies a non-2xx response. Server errors and throttling are
// ProviderUnavailable; other client errors are reported as InvalidInput with
// the remote reason attached.
func StatusError(resp *http.Response, collaborator string) error {
	re := ReadRemoteError(resp)
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return dErrors.Wrap(re, dErrors.CodeProviderUnavailable, collaborator+" unavailable")
	}
	return dErrors.Wrap(re, dErrors.CodeInvalidInput, collaborator+" rejected the request")
}
