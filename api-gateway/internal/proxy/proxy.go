// Package proxy forwards public routes to the owning service.
package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/middleware"
)

// maxBodyBytes bounds how much of a request body the gateway buffers.
const maxBodyBytes = 1 << 20

type Upstream struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	// Transport overrides the default round tripper; tests point it at httptest.
	Transport http.RoundTripper
}

// Proxy relays requests to a single upstream. Connection failures trip its
// breaker; upstream answers of any status are passed through untouched.
type Proxy struct {
	upstream Upstream
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func New(upstream Upstream, logger *zap.Logger) *Proxy {
	if upstream.Timeout == 0 {
		upstream.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("upstream", upstream.Name))

	return &Proxy{
		upstream: upstream,
		client:   &http.Client{Transport: upstream.Transport, Timeout: upstream.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    upstream.Name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		logger: logger,
	}
}

// Handler returns the gin handler for every route owned by the upstream.
func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logging.FromContext(c.Request.Context(), p.logger)

		targetURL := p.upstream.BaseURL + c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			targetURL += "?" + c.Request.URL.RawQuery
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			var err error
			bodyBytes, err = io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
			if err != nil {
				middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
				return
			}
			if len(bodyBytes) > maxBodyBytes {
				middleware.RespondWithError(c, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, bytes.NewReader(bodyBytes))
		if err != nil {
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create request")
			return
		}

		for key, values := range c.Request.Header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		// internal routes are never reachable through the gateway
		req.Header.Del(middleware.InternalTokenHeader)
		if id := c.GetString("requestId"); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}
		otel.GetTextMapPropagator().Inject(c.Request.Context(), propagation.HeaderCarrier(req.Header))

		res, err := p.breaker.Execute(func() (interface{}, error) {
			return p.client.Do(req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				middleware.RespondWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			log.Warn("proxy request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			middleware.RespondWithError(c, http.StatusBadGateway, "Service unavailable")
			return
		}
		resp := res.(*http.Response)
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadGateway, "Failed to read response")
			return
		}

		for key, values := range resp.Header {
			if key == "Content-Length" || key == middleware.RequestIDHeader {
				continue
			}
			for _, value := range values {
				c.Writer.Header().Add(key, value)
			}
		}
		c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	}
}
