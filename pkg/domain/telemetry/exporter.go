package telemetry

import (
	"context"
)

const (
	KindSecurityEvent   = "security_event"
	KindAttackSignature = "attack_signature"
	KindBlockChanged    = "block_changed"
)

// Event is the envelope every exporter receives.
type Event struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	InstanceID string      `json:"instance_id"`
	Timestamp  int64       `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

//go:generate mockery --name=Exporter --dir=. --output=./mocks --filename=exporter_mock.go --case=underscore --with-expecter
type Exporter interface {
	Name() string
	ValidateConfig(settings map[string]interface{}) error
	Handle(ctx context.Context, evt *Event) error
	WithSettings(settings map[string]interface{}) (Exporter, error)
	Close()
}
