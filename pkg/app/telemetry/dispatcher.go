package telemetry

import (
	"context"
	"time"

	domain "github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/worker"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const exportTimeout = 5 * time.Second

// Dispatcher fans events out to the configured exporters off the request path.
//
//go:generate mockery --name=Dispatcher --dir=. --output=./mocks --filename=dispatcher_mock.go --case=underscore --with-expecter
type Dispatcher interface {
	Dispatch(kind string, payload interface{})
	Close()
}

type dispatcher struct {
	logger     *logrus.Logger
	exporters  []domain.Exporter
	pool       worker.Worker
	instanceID string
	now        func() time.Time
}

func NewDispatcher(
	logger *logrus.Logger,
	exporters []domain.Exporter,
	pool worker.Worker,
	instanceID string,
) Dispatcher {
	return &dispatcher{
		logger:     logger,
		exporters:  exporters,
		pool:       pool,
		instanceID: instanceID,
		now:        time.Now,
	}
}

func (d *dispatcher) Dispatch(kind string, payload interface{}) {
	if len(d.exporters) == 0 {
		return
	}
	evt := &domain.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		InstanceID: d.instanceID,
		Timestamp:  d.now().Unix(),
		Payload:    payload,
	}
	d.pool.Submit("export_"+kind, func(ctx context.Context) {
		for _, exp := range d.exporters {
			exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
			if err := exp.Handle(exportCtx, evt); err != nil {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"exporter": exp.Name(),
					"kind":     kind,
				}).Warn("failed to export event")
			}
			cancel()
		}
	})
}

func (d *dispatcher) Close() {
	for _, exp := range d.exporters {
		exp.Close()
	}
}
