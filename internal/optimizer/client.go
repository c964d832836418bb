package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// RequestRejectedError is a 400 from the optimization service: the request
// itself is malformed, so neither retries nor the heuristic fallback apply.
type RequestRejectedError struct {
	Message string
}

func (e *RequestRejectedError) Error() string {
	return "optimizer rejected request: " + e.Message
}

// ErrSolverUnavailable is returned when the circuit breaker is open and no
// call was attempted.
var ErrSolverUnavailable = errors.New("optimizer service unavailable")

// ClientConfig configures the HTTP optimizer client.
type ClientConfig struct {
	// BaseURL of the optimization service, e.g. http://solver:8090.
	BaseURL string

	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration

	// RetryAttempts is the number of additional attempts after the first
	// transport-level failure. Rejected requests are never retried.
	RetryAttempts int

	// FailureThreshold trips the circuit breaker after this many
	// consecutive failures.
	FailureThreshold uint32

	// BreakerInterval is the cyclic period of the closed state.
	BreakerInterval time.Duration

	// BreakerTimeout is the period of the open state.
	BreakerTimeout time.Duration
}

// DefaultClientConfig returns production defaults for the given base URL.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:          baseURL,
		Timeout:          30 * time.Second,
		RetryAttempts:    2,
		FailureThreshold: 5,
		BreakerInterval:  10 * time.Second,
		BreakerTimeout:   30 * time.Second,
	}
}

// Client calls the optimization service over HTTP. All calls flow through a
// circuit breaker so a dead solver fails fast instead of holding every
// planning cycle to the full timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*vrp.Response]
	retries    int
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an HTTP optimizer client.
func NewClient(cfg ClientConfig, metrics observability.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retries:    cfg.RetryAttempts,
		metrics:    metrics,
		logger:     logger,
	}

	settings := gobreaker.Settings{
		Name:        "vrp-solver",
		MaxRequests: 3,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// A rejected request is our bug, not solver ill health.
			var rejected *RequestRejectedError
			return err == nil || errors.As(err, &rejected)
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker[*vrp.Response](settings)
	return c
}

// OptimizeDay posts the routing request to the service. Transport failures
// are retried a bounded number of times with a short backoff; a 400-class
// rejection returns immediately.
func (c *Client) OptimizeDay(ctx context.Context, req *vrp.Request) (*vrp.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding optimize request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 200 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			c.logger.Warn("retrying optimize request",
				slog.Int("attempt", attempt+1),
				slog.String("error", lastErr.Error()))
		}

		resp, err := c.breaker.Execute(func() (*vrp.Response, error) {
			return c.post(ctx, body)
		})
		if err == nil {
			return resp, nil
		}
		var rejected *RequestRejectedError
		if errors.As(err, &rejected) {
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrSolverUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("optimize request failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (*vrp.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/optimize-schedule", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := observability.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Correlation-ID", id)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling optimizer service: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	switch {
	case httpResp.StatusCode == http.StatusOK:
		var resp vrp.Response
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("decoding optimizer response: %w", err)
		}
		return &resp, nil
	case httpResp.StatusCode >= 400 && httpResp.StatusCode < 500:
		return nil, &RequestRejectedError{Message: readErrorMessage(httpResp.Body)}
	default:
		return nil, fmt.Errorf("optimizer service returned status %d", httpResp.StatusCode)
	}
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return string(raw)
}

// Health probes the service health endpoint.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("optimizer health check: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("optimizer health check returned status %d", httpResp.StatusCode)
	}
	return nil
}
