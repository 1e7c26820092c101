// Package cartclient talks to the backend cart REST API.
//
// Every call carries the session token as a bearer credential. Any 2xx
// response is success; 404 maps to *cart.NotFoundError and every other
// failure to *cart.NetworkError. Calls are never retried.
package cartclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

const maxBodySize = 4 << 20

// BreakerConfig controls the circuit breaker in front of the backend.
type BreakerConfig struct {
	Enabled      bool          `default:"true" usage:"Enable the circuit breaker"`
	MaxRequests  uint32        `default:"1" usage:"Requests allowed while half-open"`
	Interval     time.Duration `default:"60s" usage:"Closed-state counter reset period"`
	Timeout      time.Duration `default:"30s" usage:"Open-state duration before probing"`
	FailureRatio float64       `default:"0.5" usage:"Failure ratio that trips the breaker"`
	MinRequests  uint32        `default:"5" usage:"Requests before the ratio is evaluated"`
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds each request. Zero means no timeout beyond ctx.
	Timeout time.Duration
	Breaker BreakerConfig
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as is, without tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for breaker state changes.
func WithLogger(lg *zap.Logger) Option {
	return func(c *Client) { c.lg = lg }
}

// Client is a remote cart API client.
type Client struct {
	base    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	lg      *zap.Logger
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	c := &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		lg: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(c.base, cfg.Breaker, c.lg)
	}
	return c, nil
}

func newBreaker(name string, cfg BreakerConfig, lg *zap.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// serverError marks a 5xx response so the breaker counts it as a failure.
type serverError struct {
	status int
	body   string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: %s", e.body)
}

// request describes a single API call.
type request struct {
	op        string
	method    string
	path      string
	token     string
	body      []byte
	productID string
	// statusErrs maps non-2xx statuses to domain errors for endpoints that
	// are not about cart lines.
	statusErrs map[int]error
}

// do executes r and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	send := func() (*http.Response, error) {
		var body io.Reader = http.NoBody
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, c.base+r.path, body)
		if err != nil {
			return nil, errors.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")
		if r.body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, &serverError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
		}
		return resp, nil
	}

	var (
		resp *http.Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(send)
	} else {
		resp, err = send()
	}
	if err != nil {
		var se *serverError
		if errors.As(err, &se) {
			return nil, &cart.NetworkError{Op: r.op, Status: se.status, Err: se}
		}
		return nil, &cart.NetworkError{Op: r.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &cart.NetworkError{Op: r.op, Status: resp.StatusCode, Err: errors.Wrap(err, "read body")}
	}
	return data, checkStatus(r, resp.StatusCode, data)
}

// checkStatus is the single success predicate: any 2xx.
func checkStatus(r request, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case r.statusErrs[status] != nil:
		return r.statusErrs[status]
	case status == http.StatusNotFound:
		id := r.productID
		if id == "" {
			id = notFoundProduct(body)
		}
		return &cart.NotFoundError{ProductID: id}
	default:
		msg := strings.TrimSpace(string(body))
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return &cart.NetworkError{
			Op:     r.op,
			Status: status,
			Err:    errors.Errorf("unexpected status %s: %s", http.StatusText(status), msg),
		}
	}
}

// notFoundProduct extracts "productId" from a 404 error body, if any.
func notFoundProduct(body []byte) string {
	var id string
	d := jx.DecodeBytes(body)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "productId" || d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		id = v
		return err
	})
	return id
}

// State returns the breaker state, or closed when the breaker is disabled.
func (c *Client) State() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}
