package httpx

import (
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxConnsPerHost     = 512
	DefaultMaxIdleConnDuration = 10 * time.Second
	DefaultMaxResponseBodySize = 100 * 1024 * 1024
)

type UpstreamClientOptions struct {
	Timeout             time.Duration
	MaxConnsPerHost     int
	MaxIdleConnDuration time.Duration
	MaxResponseBodySize int
}

type UpstreamClientOption func(*UpstreamClientOptions)

func WithTimeout(timeout time.Duration) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.Timeout = timeout
	}
}

func WithMaxConnsPerHost(max int) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.MaxConnsPerHost = max
	}
}

//go:generate mockery --name=UpstreamClient --dir=. --output=./mocks --filename=upstream_client_mock.go --case=underscore --with-expecter
type UpstreamClient interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
}

type upstreamClient struct {
	client  *fasthttp.Client
	timeout time.Duration
	breaker CircuitBreaker
}

// NewUpstreamClient returns a fasthttp client guarded by its own circuit breaker.
func NewUpstreamClient(opts ...UpstreamClientOption) UpstreamClient {
	options := &UpstreamClientOptions{
		Timeout:             DefaultTimeout,
		MaxConnsPerHost:     DefaultMaxConnsPerHost,
		MaxIdleConnDuration: DefaultMaxIdleConnDuration,
		MaxResponseBodySize: DefaultMaxResponseBodySize,
	}
	for _, opt := range opts {
		opt(options)
	}
	return &upstreamClient{
		client: &fasthttp.Client{
			ReadTimeout:                   options.Timeout,
			WriteTimeout:                  options.Timeout,
			MaxConnsPerHost:               options.MaxConnsPerHost,
			MaxIdleConnDuration:           options.MaxIdleConnDuration,
			MaxResponseBodySize:           options.MaxResponseBodySize,
			NoDefaultUserAgentHeader:      true,
			DisableHeaderNamesNormalizing: true,
			DisablePathNormalizing:        true,
		},
		timeout: options.Timeout,
		breaker: NewCircuitBreaker("upstream", 30*time.Second, 10),
	}
}

func (c *upstreamClient) Do(req *fasthttp.Request, resp *fasthttp.Response) error {
	return c.breaker.Execute(func() error {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return fmt.Errorf("upstream request failed: %w", err)
		}
		return nil
	})
}
