package outbound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dividend/pkg/domain-errors"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestTransportError(t *testing.T) {
	assert.True(t, dErrors.Is(TransportError(fmt.Errorf("post: %w", context.DeadlineExceeded), "wallet"), dErrors.CodeDispatchTimeout))
	assert.True(t, dErrors.Is(TransportError(timeoutErr{}, "wallet"), dErrors.CodeDispatchTimeout))
	assert.True(t, dErrors.Is(TransportError(errors.New("connection refused"), "wallet"), dErrors.CodeProviderUnavailable))
}

func TestStatusError(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		err := StatusError(response(503, ""), "ledger")
		assert.True(t, dErrors.Is(err, dErrors.CodeProviderUnavailable))
	})

	t.Run("throttled", func(t *testing.T) {
		err := StatusError(response(429, ""), "ledger")
		assert.True(t, dErrors.Is(err, dErrors.CodeProviderUnavailable))
	})

	t.Run("structured client error", func(t *testing.T) {
		err := StatusError(response(422, `{"error":"wallet_closed","message":"wallet is closed"}`), "wallet")
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
		var re *RemoteError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "wallet_closed", re.Code)
		assert.Equal(t, 422, re.Status)
	})

	t.Run("plain body kept as message", func(t *testing.T) {
		re := ReadRemoteError(response(400, "nope"))
		assert.Equal(t, "nope", re.Message)
		assert.Equal(t, "status 400: nope", re.Error())
	})
}
