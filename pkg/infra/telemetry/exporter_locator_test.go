package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/NeuralTrust/ThreatGate/pkg/config"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExporter struct {
	name            string
	validateErr     error
	withSettingsErr error
	configured      telemetry.Exporter
	closed          int
}

func (s *stubExporter) Name() string { return s.name }

func (s *stubExporter) ValidateConfig(map[string]interface{}) error { return s.validateErr }

func (s *stubExporter) Handle(context.Context, *telemetry.Event) error { return nil }

func (s *stubExporter) WithSettings(map[string]interface{}) (telemetry.Exporter, error) {
	if s.withSettingsErr != nil {
		return nil, s.withSettingsErr
	}
	if s.configured != nil {
		return s.configured, nil
	}
	return s, nil
}

func (s *stubExporter) Close() { s.closed++ }

func TestNewProviderLocator_LastRegistrationWins(t *testing.T) {
	first := &stubExporter{name: "kafka"}
	second := &stubExporter{name: "kafka"}

	locator := NewProviderLocator(
		WithExporters(first),
		WithExporters(second),
	)

	assert.Len(t, locator.exporters, 1)
	assert.Equal(t, second, locator.exporters["kafka"])
}

func TestGetExporter(t *testing.T) {
	configured := &stubExporter{name: "kafka"}

	tests := []struct {
		name    string
		base    *stubExporter
		cfg     config.ExporterConfig
		want    telemetry.Exporter
		wantErr string
	}{
		{
			name: "configured copy is returned",
			base: &stubExporter{name: "kafka", configured: configured},
			cfg:  config.ExporterConfig{Name: "kafka", Settings: map[string]interface{}{"host": "localhost"}},
			want: configured,
		},
		{
			name:    "unknown provider",
			base:    &stubExporter{name: "kafka"},
			cfg:     config.ExporterConfig{Name: "unknown"},
			wantErr: "unknown provider: unknown",
		},
		{
			name:    "validation error",
			base:    &stubExporter{name: "kafka", validateErr: errors.New("kafka host is required")},
			cfg:     config.ExporterConfig{Name: "kafka"},
			wantErr: "kafka host is required",
		},
		{
			name:    "settings error",
			base:    &stubExporter{name: "kafka", withSettingsErr: errors.New("failed to create kafka producer")},
			cfg:     config.ExporterConfig{Name: "kafka"},
			wantErr: "failed to create kafka producer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locator := NewProviderLocator(WithExporters(tt.base))
			got, err := locator.GetExporter(tt.cfg)
			if tt.wantErr != "" {
				assert.Nil(t, got)
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateExporter(t *testing.T) {
	locator := NewProviderLocator(
		WithExporters(
			&stubExporter{name: "kafka"},
			&stubExporter{name: "webhook", validateErr: errors.New("webhook url is required")},
		),
	)

	assert.NoError(t, locator.ValidateExporter(config.ExporterConfig{Name: "kafka"}))
	assert.EqualError(t, locator.ValidateExporter(config.ExporterConfig{Name: "webhook"}), "webhook url is required")
	assert.ErrorContains(t, locator.ValidateExporter(config.ExporterConfig{Name: "nope"}), "unknown provider")
}

func TestBuild_ClosesBuiltOnFailure(t *testing.T) {
	good := &stubExporter{name: "kafka"}
	locator := NewProviderLocator(
		WithExporters(good, &stubExporter{name: "webhook", withSettingsErr: errors.New("bad url")}),
	)

	_, err := locator.Build([]config.ExporterConfig{{Name: "kafka"}, {Name: "webhook"}})
	assert.ErrorContains(t, err, "exporter webhook")
	assert.Equal(t, 1, good.closed)

	built, err := locator.Build([]config.ExporterConfig{{Name: "kafka"}})
	require.NoError(t, err)
	assert.Len(t, built, 1)
}
