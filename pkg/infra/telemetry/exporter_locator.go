package telemetry

import (
	"fmt"

	"github.com/NeuralTrust/ThreatGate/pkg/config"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
)

type ExporterLocator struct {
	exporters map[string]telemetry.Exporter
}

func NewProviderLocator(opts ...ExporterLocatorOption) *ExporterLocator {
	el := &ExporterLocator{
		exporters: make(map[string]telemetry.Exporter),
	}
	for _, opt := range opts {
		opt(el)
	}
	return el
}

func (p *ExporterLocator) GetExporter(exporter config.ExporterConfig) (telemetry.Exporter, error) {
	base, ok := p.exporters[exporter.Name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", exporter.Name)
	}
	if err := base.ValidateConfig(exporter.Settings); err != nil {
		return nil, err
	}
	provider, err := base.WithSettings(exporter.Settings)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (p *ExporterLocator) ValidateExporter(exporter config.ExporterConfig) error {
	base, ok := p.exporters[exporter.Name]
	if !ok {
		return fmt.Errorf("unknown provider: %s", exporter.Name)
	}
	return base.ValidateConfig(exporter.Settings)
}

// Build configures every exporter in cfgs. It stops at the first failure and
// closes whatever was already built.
func (p *ExporterLocator) Build(cfgs []config.ExporterConfig) ([]telemetry.Exporter, error) {
	out := make([]telemetry.Exporter, 0, len(cfgs))
	for _, c := range cfgs {
		exp, err := p.GetExporter(c)
		if err != nil {
			for _, built := range out {
				built.Close()
			}
			return nil, fmt.Errorf("exporter %s: %w", c.Name, err)
		}
		out = append(out, exp)
	}
	return out, nil
}
