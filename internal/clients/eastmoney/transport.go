// Package eastmoney provides clients for the eastmoney statement, datacenter
// and stock screener endpoints.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// RemoteError is returned for every failed remote call. Transport failures
// that carry no HTTP status use 500.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("eastmoney: status %d: %s", e.Status, e.Message)
}

// Transport performs GET requests and returns the decoded JSON payload.
type Transport interface {
	Get(ctx context.Context, rawURL string, params url.Values) (any, error)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPTransport creates a transport with the given request timeout.
func NewHTTPTransport(timeout time.Duration, log zerolog.Logger) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "eastmoney").Logger(),
	}
}

// Get issues a GET request with params as the query string.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string, params url.Values) (any, error) {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &RemoteError{Status: http.StatusInternalServerError, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	t.log.Debug().Str("url", rawURL).Msg("Making eastmoney request")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &RemoteError{Status: http.StatusInternalServerError, Message: fmt.Sprintf("HTTP request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RemoteError{Status: resp.StatusCode, Message: string(body)}
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &RemoteError{Status: http.StatusInternalServerError, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}

	return payload, nil
}
