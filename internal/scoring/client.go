// Package scoring is the client for the external prediction service. Every
// call is bounded by a timeout; callers fall back to local rules on any error.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrDisabled is returned by every call when no base URL is configured.
var ErrDisabled = errors.New("scoring service disabled")

// Endpoint paths.
const (
	PathOutbreak   = "/predict/outbreak"
	PathCrisis     = "/predict/crisis"
	PathStrain     = "/calculate/hospital_strain"
	PathDemand     = "/classify/pharmacy_demand"
	PathPrioritize = "/prioritize/orders"
	PathHealth     = "/health"
)

const maxResponseBytes = 1 << 20

// Observer receives call outcomes for metrics.
type Observer interface {
	ScoringCall(endpoint string, took time.Duration, err error)
	ScoringFallback(endpoint string)
}

type nopObserver struct{}

func (nopObserver) ScoringCall(string, time.Duration, error) {}
func (nopObserver) ScoringFallback(string)                   {}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected HTTP %d: %s", e.Endpoint, e.Code, e.Body)
}

// Client talks to the prediction service.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	observer Observer
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver reports call outcomes.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client. An empty baseURL yields a disabled client.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  timeout,
		http:     &http.Client{},
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "scoring")
	return c
}

// Enabled reports whether calls reach a service.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Fallback records that a caller is using local rules for endpoint after err.
// A disabled service is expected and logged at debug level only.
func (c *Client) Fallback(endpoint string, err error) {
	if c == nil {
		return
	}
	c.observer.ScoringFallback(endpoint)
	if errors.Is(err, ErrDisabled) {
		c.logger.Debug("using fallback rules", "endpoint", endpoint)
		return
	}
	c.logger.Warn("scoring unavailable, using fallback rules", "endpoint", endpoint, "error", err)
}

// PredictOutbreak scores every disease's test counts.
func (c *Client) PredictOutbreak(ctx context.Context, req OutbreakRequest) ([]OutbreakPrediction, error) {
	var out []OutbreakPrediction
	if err := c.post(ctx, PathOutbreak, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PredictCrisis scores the city crisis level.
func (c *Client) PredictCrisis(ctx context.Context, req CrisisRequest) (*CrisisPrediction, error) {
	var out CrisisPrediction
	if err := c.post(ctx, PathCrisis, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HospitalStrain computes a hospital strain index.
func (c *Client) HospitalStrain(ctx context.Context, req StrainRequest) (*StrainResult, error) {
	var out StrainResult
	if err := c.post(ctx, PathStrain, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClassifyDemand classifies pharmacy medicine demand.
func (c *Client) ClassifyDemand(ctx context.Context, req DemandRequest) (*DemandResult, error) {
	var out DemandResult
	if err := c.post(ctx, PathDemand, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrioritizeOrders ranks supplier orders.
func (c *Client) PrioritizeOrders(ctx context.Context, req PrioritizeRequest) (*PrioritizeResult, error) {
	var out PrioritizeResult
	if err := c.post(ctx, PathPrioritize, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the service answers.
func (c *Client) Health(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: PathHealth, Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) (err error) {
	if !c.Enabled() {
		return ErrDisabled
	}

	start := time.Now()
	defer func() {
		c.observer.ScoringCall(path, time.Since(start), err)
		if err != nil {
			c.logger.Debug("scoring call failed", "endpoint", path, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
