// Package httpclient is the JSON client services use to call each other. It
// bounds every call with a timeout, trips a circuit breaker on repeated
// infrastructure failures and maps error bodies back onto the errs taxonomy.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/middleware"
)

type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many probes are let through while half-open.
	HalfOpenRequests uint32
}

type Config struct {
	Name          string
	BaseURL       string
	Timeout       time.Duration
	InternalToken string
	Breaker       BreakerConfig
	Transport     http.RoundTripper
}

type Client struct {
	name          string
	baseURL       string
	internalToken string
	timeout       time.Duration
	http          *http.Client
	breaker       *gobreaker.CircuitBreaker
	logger        *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Breaker.ConsecutiveFailures == 0 {
		cfg.Breaker.ConsecutiveFailures = 5
	}
	if cfg.Breaker.OpenTimeout == 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}
	if cfg.Breaker.HalfOpenRequests == 0 {
		cfg.Breaker.HalfOpenRequests = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("upstream", cfg.Name))

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.Breaker.HalfOpenRequests,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Domain rejections (not found, insufficient funds, validation) mean
		// the upstream is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || !errs.Retryable(err)
		},
	}

	return &Client{
		name:          cfg.Name,
		baseURL:       cfg.BaseURL,
		internalToken: cfg.InternalToken,
		timeout:       cfg.Timeout,
		http:          &http.Client{Transport: cfg.Transport},
		breaker:       gobreaker.NewCircuitBreaker(settings),
		logger:        logger,
	}
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

type result struct {
	status int
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil). It returns the response status for 2xx answers. Non-2xx answers
// come back as *errs.Error.
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, in, out any) (int, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		status, err := c.do(ctx, method, path, headers, in, out)
		return result{status: status}, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, errs.Upstream(fmt.Sprintf("%s is temporarily unavailable", c.name), err)
		}
		return 0, err
	}
	return res.(result).status, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s request: %w", c.name, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.internalToken != "" {
		req.Header.Set(middleware.InternalTokenHeader, c.internalToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upstream call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, errs.Upstream(fmt.Sprintf("%s is unreachable", c.name), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, errs.Upstream(fmt.Sprintf("%s response was interrupted", c.name), err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return 0, errs.Upstream(fmt.Sprintf("%s returned an unreadable response", c.name), err)
			}
		}
		return resp.StatusCode, nil
	}

	return 0, c.decodeError(resp.StatusCode, raw)
}

func (c *Client) decodeError(status int, raw []byte) error {
	var body middleware.ErrorResponse
	_ = json.Unmarshal(raw, &body)

	kind := kindForStatus(status)
	reason := body.Code
	if reason == "" || kind == errs.KindUpstream && reason == "internal" {
		reason = string(kind)
	}
	message := body.Message
	if kind == errs.KindUpstream {
		message = fmt.Sprintf("%s failed with status %d", c.name, status)
		if reason == errs.ReasonTransferInProgress {
			message = body.Message
		}
	}
	return &errs.Error{Kind: kind, Reason: reason, Message: message}
}

func kindForStatus(status int) errs.Kind {
	switch status {
	case http.StatusBadRequest:
		return errs.KindValidation
	case http.StatusNotFound:
		return errs.KindNotFound
	case http.StatusUnprocessableEntity:
		return errs.KindInsufficientFunds
	case http.StatusForbidden:
		return errs.KindForbidden
	default:
		return errs.KindUpstream
	}
}
