// Package upstream provides the HTTP client for the external prediction
// service, with a hard per-call timeout and uniform failure reporting.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Siyabonga8/winmastersai/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	// PrivilegedHeader carries the server-to-server key on authorized detail requests.
	PrivilegedHeader = "X-Predictor-Key"

	// DefaultTimeout bounds a whole FetchMatch call, retries included.
	DefaultTimeout = 5 * time.Second

	// MaxBodyBytes caps how much of an upstream response is read.
	MaxBodyBytes = 1 << 20
)

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_upstream_requests_total",
		Help: "Total prediction service requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictor_upstream_request_duration_seconds",
		Help:    "Duration of FetchMatch calls in seconds, retries included",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_upstream_errors_total",
		Help: "Total prediction service errors by class",
	}, []string{"class"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_upstream_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the prediction service; the match id is appended as a path segment
	BaseURL string

	// PrivilegedKey is sent in PrivilegedHeader on authorized detail requests.
	// Empty disables the header entirely.
	PrivilegedKey string

	// UserAgent header sent on every request
	UserAgent string

	// Timeout is the hard bound for one FetchMatch call
	Timeout time.Duration

	// Retry policy for server and network errors, inside Timeout
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "winmastersai-proxy/0.1.0",
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryConfig(),
	}
}

// Client fetches predictions from the upstream service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", u.Scheme)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	return &Client{
		// No client-level timeout: every call carries its own deadline.
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		logger:     logging.NewLogger("upstream-client"),
	}, nil
}

// FetchMatch fetches the prediction for one match.
//
// The whole call, retries included, is bounded by the configured timeout.
// Every failure (non-2xx status, transport error, timeout, invalid JSON)
// is reported as an error matching ErrUpstreamFailure.
func (c *Client) FetchMatch(ctx context.Context, matchID string, detail, attachPrivileged bool) (json.RawMessage, error) {
	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if matchID == "" {
		return nil, c.fail(&FetchError{
			MatchID:    matchID,
			ErrorClass: ErrorClassClient,
			Message:    "empty match id",
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	target := c.matchURL(matchID, detail)
	privileged := attachPrivileged && c.config.PrivilegedKey != ""

	c.logger.Debug().
		Str("match_id", matchID).
		Bool("detail", detail).
		Bool("privileged", privileged).
		Msg("Fetching prediction")

	var payload json.RawMessage
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var attemptErr error
		payload, attemptErr = c.fetchOnce(ctx, matchID, target, privileged)
		return attemptErr
	})
	if err != nil {
		return nil, c.fail(err)
	}

	upstreamRequestsTotal.WithLabelValues("200").Inc()
	return payload, nil
}

// fetchOnce performs a single upstream request.
func (c *Client) fetchOnce(ctx context.Context, matchID, target string, privileged bool) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{
			MatchID:    matchID,
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			Err:        err,
		}
	}

	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if privileged {
		req.Header.Set(PrivilegedHeader, c.config.PrivilegedKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fe := &FetchError{
			MatchID:    matchID,
			ErrorClass: c.classifyError(ctx, nil, err),
			Message:    "request failed",
			Err:        err,
		}
		upstreamRequestsTotal.WithLabelValues(string(fe.ErrorClass)).Inc()
		return nil, fe
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return nil, &FetchError{
			MatchID:    matchID,
			StatusCode: resp.StatusCode,
			ErrorClass: c.classifyError(ctx, resp, nil),
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{
			MatchID:    matchID,
			StatusCode: resp.StatusCode,
			ErrorClass: c.classifyError(ctx, nil, err),
			Message:    "read response body",
			Err:        err,
		}
	}

	if len(body) > MaxBodyBytes {
		return nil, &FetchError{
			MatchID:    matchID,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "response body too large",
		}
	}

	if !json.Valid(body) {
		return nil, &FetchError{
			MatchID:    matchID,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "response body is not valid JSON",
		}
	}

	return json.RawMessage(body), nil
}

// fail records and logs a failed fetch and makes sure the returned error
// matches ErrUpstreamFailure.
func (c *Client) fail(err error) error {
	var fe *FetchError
	if !errors.As(err, &fe) {
		fe = &FetchError{ErrorClass: ErrorClassNetwork, Message: "unexpected failure", Err: err}
	}

	upstreamErrorsTotal.WithLabelValues(string(fe.ErrorClass)).Inc()
	c.logger.Warn().
		Str("match_id", fe.MatchID).
		Int("status", fe.StatusCode).
		Str("error_class", string(fe.ErrorClass)).
		Err(fe.Err).
		Msg("Upstream fetch failed")

	return fe
}

// classifyError categorizes an error for observability and retry decisions.
func (c *Client) classifyError(ctx context.Context, resp *http.Response, err error) ErrorClass {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrorClassTimeout
		}
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// matchURL builds the upstream address for one match.
func (c *Client) matchURL(matchID string, detail bool) string {
	target := c.baseURL + "/" + url.PathEscape(matchID)
	if detail {
		target += "?" + url.Values{"detail": []string{"true"}}.Encode()
	}
	return target
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
