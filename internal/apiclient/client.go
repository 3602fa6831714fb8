// Package apiclient drives the scheduling core against a remote backing
// service over its REST API. Transient failures are retried with
// exponential backoff; error bodies are mapped back onto apperr kinds so
// callers see the same errors they would get from a local service.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"workshop_backend/platform/apperr"
	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	apiPrefix        = "/api/v1"
	defaultTimeout   = 10 * time.Second
	defaultBaseDelay = time.Second
	maxErrorBody     = 64 << 10
)

// Client is the HTTP client for the scheduling API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	baseDelay  time.Duration
	maxRetries int
	log        *logger.Logger
}

// New creates a new API client.
func New(cfg config.APIClientConfig, log *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.GetAPIBaseURL()), "/")
	if baseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}

	timeout := cfg.GetAPITimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseDelay := cfg.GetAPIRetryBaseDelay()
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	maxRetries := cfg.GetAPIMaxRetries()
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:    baseURL,
		token:      cfg.GetAPIToken(),
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
		log:        log,
	}, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.baseDelay << c.maxRetries
	return b
}

// do sends one API call. Network failures and 5xx responses are retried up
// to maxRetries times; every other failure is returned immediately.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		return struct{}{}, c.send(ctx, method, path, payload, out)
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithContext(ctx).Warn("api request failed, retrying",
			"method", method, "path", path, "attempt", attempt, "retryIn", wait.String(), "error", err)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(notify),
	)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return apperr.Transient("api request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	apiErr := decodeError(resp)
	if resp.StatusCode >= http.StatusInternalServerError {
		return apiErr
	}
	c.log.WithContext(ctx).Debug("api request rejected", "method", method, "path", path, "status", resp.StatusCode, "code", apiErr.Code())
	return backoff.Permanent(apiErr)
}
