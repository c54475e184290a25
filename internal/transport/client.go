package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/monolith/internal/infrastructure/resilience"
)

// ErrHostUnavailable is returned while a host's breaker is open.
var ErrHostUnavailable = errors.New("host unavailable: too many failed requests")

// Options configures a Client.
type Options struct {
	Timeout          time.Duration
	Insecure         bool
	UserAgent        string
	Retries          int
	RateLimit        float64 // requests per second, 0 for unlimited
	BreakerThreshold uint32  // consecutive network failures before a host is skipped, 0 disables
	Logger           *zap.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    *url.URL // after redirects
}

// Client issues GET requests for assets. It retries transient failures,
// throttles globally and stops contacting hosts that keep failing at the
// network level.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	hosts   *resilience.Hosts
	logger  *zap.Logger
}

// NewClient creates a client from opts.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	// hand the last response back instead of an error so status handling stays with the caller
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.Insecure {
		if t, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		restyClient.SetHeader("User-Agent", opts.UserAgent)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	var hosts *resilience.Hosts
	if opts.BreakerThreshold > 0 {
		hosts = resilience.NewHosts(resilience.Settings{
			Threshold: opts.BreakerThreshold,
			Cooldown:  30 * time.Second,
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			},
			OnStateChange: func(host string, from, to resilience.State) {
				logger.Debug("host breaker changed state",
					zap.String("host", host), zap.Stringer("from", from), zap.Stringer("to", to))
			},
		})
	}

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		hosts:   hosts,
		logger:  logger,
	}
}

// Get fetches target with the given extra headers. Any status code is a
// successful response; only transport failures return an error.
func (c *Client) Get(ctx context.Context, target *url.URL, headers map[string]string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req := c.resty.R().SetContext(ctx)
	for k, v := range headers {
		if v != "" {
			req.SetHeader(k, v)
		}
	}

	var resp *resty.Response
	do := func() error {
		var err error
		resp, err = req.Get(target.String())
		return err
	}

	var err error
	if c.hosts != nil {
		err = c.hosts.Do(target.Host, do)
		if errors.Is(err, resilience.ErrHostOpen) || errors.Is(err, resilience.ErrProbeInFlight) {
			return nil, fmt.Errorf("%w: %s", ErrHostUnavailable, target.Host)
		}
	} else {
		err = do()
	}
	if err != nil {
		return nil, err
	}

	final := target
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL
	}

	return &Response{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
		URL:    final,
	}, nil
}

// IsSuccess reports whether the status code is 2xx
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// HostStates reports the breaker state of every host contacted so far
func (c *Client) HostStates() map[string]resilience.State {
	if c.hosts == nil {
		return nil
	}
	return c.hosts.States()
}
