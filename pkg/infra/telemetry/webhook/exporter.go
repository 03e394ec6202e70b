package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/httpx"
	"github.com/mitchellh/mapstructure"
	"github.com/valyala/fasthttp"
)

const (
	ExporterName = "webhook"
)

type Config struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout string            `mapstructure:"timeout"`
}

type Exporter struct {
	cfg    Config
	client httpx.UpstreamClient
}

func NewWebhookExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Name() string {
	return ExporterName
}

func (e *Exporter) ValidateConfig(settings map[string]interface{}) error {
	var conf Config
	if err := mapstructure.Decode(settings, &conf); err != nil {
		return fmt.Errorf("invalid webhook config: %w", err)
	}
	if conf.URL == "" {
		return errors.New("webhook url is required")
	}
	u, err := url.Parse(conf.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("webhook url must be http(s): %s", conf.URL)
	}
	if conf.Timeout != "" {
		if _, err := time.ParseDuration(conf.Timeout); err != nil {
			return fmt.Errorf("invalid webhook timeout: %w", err)
		}
	}
	return nil
}

func (e *Exporter) WithSettings(settings map[string]interface{}) (telemetry.Exporter, error) {
	var conf Config
	if err := mapstructure.Decode(settings, &conf); err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}
	timeout := 5 * time.Second
	if conf.Timeout != "" {
		d, err := time.ParseDuration(conf.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook timeout: %w", err)
		}
		timeout = d
	}
	return &Exporter{
		cfg:    conf,
		client: httpx.NewUpstreamClient(httpx.WithTimeout(timeout), httpx.WithMaxConnsPerHost(16)),
	}, nil
}

// WithClient swaps the HTTP client, used by tests.
func (e *Exporter) WithClient(cfg Config, client httpx.UpstreamClient) *Exporter {
	return &Exporter{cfg: cfg, client: client}
}

func (e *Exporter) Handle(_ context.Context, evt *telemetry.Event) error {
	if e.client == nil {
		return errors.New("webhook exporter is not initialized")
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(e.cfg.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	if err := e.client.Do(req, resp); err != nil {
		return err
	}
	if code := resp.StatusCode(); code >= 300 {
		return fmt.Errorf("webhook answered %d", code)
	}
	return nil
}

func (e *Exporter) Close() {}
