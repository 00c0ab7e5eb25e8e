package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/perfbook/companion-backend/internal/infrastructure/resilience"
	"github.com/perfbook/companion-backend/internal/interp"
)

// Client bridges the pipeline to an out-of-process interpreter worker over
// HTTP. The worker owns the actual language runtime; this adapter only
// forwards code and marshals results. A circuit breaker around the
// transport fails fast while the worker is down instead of burning the
// full timeout budget per request.
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
	closed  bool
}

// Config defines worker connection settings.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultConfig returns connection settings for a local worker.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:8701",
		Timeout:      60 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}

// New creates a worker client. Transient transport failures are retried by
// retryablehttp underneath resty; interpreter-level errors are never retried.
func New(cfg Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Logger = nil

	client := resty.NewWithClient(rc.StandardClient()).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	breaker := resilience.New("interpreter-worker", resilience.Settings{
		MaxRequests: 2,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// The retry layer already absorbs transient blips; only a
			// persistently dead worker should trip.
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Client{http: client, breaker: breaker}
}

type runRequest struct {
	Code string `json:"code"`
}

type runResponse struct {
	Value interface{} `json:"value"`
	Error *string     `json:"error"`
}

type loadRequest struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// Load activates the companion package inside the worker's runtime.
func (c *Client) Load(ctx context.Context, archive interp.Archive) error {
	if c.closed {
		return interp.ErrClosed
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(loadRequest{Name: archive.Name, URL: archive.URL, Data: archive.Data}).
			Post("/load")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("worker returned %s: %s", resp.Status(), resp.String())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("remote: load %q: %w", archive.Name, err)
	}
	return nil
}

// Run executes code in the worker and returns the final expression value.
// Interpreter-level errors come back as HTTP 200 with an error payload;
// they count as breaker successes because the worker itself is healthy.
func (c *Client) Run(ctx context.Context, code string) (interface{}, error) {
	if c.closed {
		return nil, interp.ErrClosed
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		var out runResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(runRequest{Code: code}).
			SetResult(&out).
			Post("/run")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("worker returned %s: %s", resp.Status(), resp.String())
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("remote: run: %w", err)
	}
	out := res.(*runResponse)
	if out.Error != nil {
		return nil, fmt.Errorf("remote: %s", *out.Error)
	}
	return out.Value, nil
}

// Globals exposes the worker's global scope through per-name endpoints.
func (c *Client) Globals() interp.Globals {
	return workerGlobals{client: c}
}

// Interrupt asks the worker to raise its internal exit signal. Best-effort:
// the request is fired without waiting on the outcome of the in-flight Run.
func (c *Client) Interrupt(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"reason": reason}).
		Post("/interrupt")
}

// Close marks the client closed. The worker process is owned elsewhere.
func (c *Client) Close() error {
	c.closed = true
	return nil
}

type workerGlobals struct {
	client *Client
}

type globalResponse struct {
	Value   interface{} `json:"value"`
	Defined bool        `json:"defined"`
}

func (g workerGlobals) Get(name string) (interface{}, bool) {
	var out globalResponse
	resp, err := g.client.http.R().
		SetResult(&out).
		Get("/globals/" + name)
	if err != nil || resp.StatusCode() != http.StatusOK || !out.Defined {
		return nil, false
	}
	return out.Value, true
}

func (g workerGlobals) Set(name string, value interface{}) error {
	resp, err := g.client.http.R().
		SetBody(map[string]interface{}{"value": value}).
		Put("/globals/" + name)
	if err != nil {
		return fmt.Errorf("remote: set global %q: %w", name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("remote: set global %q: worker returned %s", name, resp.Status())
	}
	return nil
}

func (g workerGlobals) Has(name string) bool {
	_, ok := g.Get(name)
	return ok
}

func (g workerGlobals) Delete(name string) {
	g.client.http.R().Delete("/globals/" + name)
}
