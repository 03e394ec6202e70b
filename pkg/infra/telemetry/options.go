package telemetry

import "github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"

type ExporterLocatorOption func(*ExporterLocator)

// WithExporters registers each exporter under its own Name. A later
// registration with the same name replaces the earlier one.
func WithExporters(exporters ...telemetry.Exporter) ExporterLocatorOption {
	return func(el *ExporterLocator) {
		for _, exp := range exporters {
			el.exporters[exp.Name()] = exp
		}
	}
}
