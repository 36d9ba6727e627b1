package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"gagbot/internal/metrics"
	"gagbot/internal/ratectl"
	logx "gagbot/pkg/logx"
)

const (
	DefaultEndpoint     = "https://api.joshlei.com/v2/growagarden/stock"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 4 << 20
	DefaultUserAgent    = "gagbot/1.0"

	breakerName     = "stock-feed"
	breakerTrips    = 5
	breakerCooldown = 2 * time.Minute
)

type Client struct {
	endpoint  string
	userAgent string
	timeout   time.Duration
	maxBody   int64
	http      *http.Client
	log       logx.Logger
	cb        *gobreaker.CircuitBreaker[*response]
}

type Option func(*Client)

func WithEndpoint(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.endpoint = u
		}
	}
}

// WithTimeout bounds one fetch, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(opts ...Option) *Client {
	c := &Client{
		endpoint:  DefaultEndpoint,
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		maxBody:   DefaultMaxBodyBytes,
		http:      &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	c.cb = c.newBreaker()
	return c
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[*response] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		// the caller going away says nothing about the feed
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				logx.String("name", name),
				logx.String("from", from.String()),
				logx.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string { return c.cb.State().String() }

func (c *Client) Endpoint() string { return c.endpoint }

type response struct {
	status int
	header http.Header
	body   []byte
}

// Fetch issues one GET against the feed. It never returns an error; the
// outcome carries the classification.
func (c *Client) Fetch(ctx context.Context) Outcome {
	start := time.Now()
	out := c.fetch(ctx)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	metrics.FetchTotal.WithLabelValues(out.Status.String()).Inc()
	c.observe(out)
	return out
}

func (c *Client) fetch(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.cb.Execute(func() (*response, error) { return c.do(ctx) })
	if err != nil {
		return transient(err)
	}

	sig := ratectl.Signal{
		PerCaller: ratectl.ParseRemaining(resp.header.Get(HeaderRemainingIP)),
		Global:    ratectl.ParseRemaining(resp.header.Get(HeaderRemainingGlobal)),
	}

	if raw := strings.TrimSpace(resp.header.Get(HeaderRetryAfter)); raw != "" {
		secs, perr := strconv.Atoi(raw)
		if perr != nil {
			return transient(fmt.Errorf("retry-after %q: %w", raw, perr))
		}
		if secs > 0 {
			return Outcome{Status: StatusRateLimited, Signal: sig, RetryAfter: time.Duration(secs) * time.Second}
		}
	}

	if resp.status < 200 || resp.status > 299 {
		return transient(fmt.Errorf("unexpected status %d", resp.status))
	}

	snap, err := decodeSnapshot(resp.body)
	if err != nil {
		return transient(err)
	}
	return Outcome{Status: StatusOK, Snapshot: snap, Signal: sig}
}

// do performs the request. Statuses that carry a Retry-After are handed
// back for classification; other non-2xx statuses count against the breaker.
func (c *Client) do(ctx context.Context) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("body exceeds %d bytes", c.maxBody)
	}

	r := &response{status: resp.StatusCode, header: resp.Header, body: body}
	if (r.status < 200 || r.status > 299) && r.header.Get(HeaderRetryAfter) == "" {
		return nil, fmt.Errorf("unexpected status %d", r.status)
	}
	return r, nil
}

func transient(err error) Outcome {
	return Outcome{Status: StatusTransient, Err: fmt.Errorf("%w: %w", ErrTransient, err)}
}

func (c *Client) observe(out Outcome) {
	for scope, r := range map[string]ratectl.Remaining{"ip": out.Signal.PerCaller, "global": out.Signal.Global} {
		if v, ok := r.Value(); ok {
			metrics.QuotaRemaining.WithLabelValues(scope).Set(float64(v))
		}
	}
	switch out.Status {
	case StatusTransient:
		c.log.Warn("stock fetch failed", logx.Err(out.Err))
	case StatusRateLimited:
		c.log.Warn("stock feed asked to back off",
			logx.Duration("retry_after", out.RetryAfter),
			logx.String("remaining_ip", out.Signal.PerCaller.String()),
			logx.String("remaining_global", out.Signal.Global.String()),
		)
	default:
		c.log.Info("stock fetched",
			logx.Int("entries", out.Snapshot.Count()),
			logx.String("remaining_ip", out.Signal.PerCaller.String()),
			logx.String("remaining_global", out.Signal.Global.String()),
		)
	}
}
