package signature

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type AttackPattern struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	PatternHash     string         `json:"pattern_hash" gorm:"uniqueIndex:idx_attack_patterns_hash_bucket"`
	WindowBucket    int64          `json:"window_bucket" gorm:"uniqueIndex:idx_attack_patterns_hash_bucket"`
	Endpoints       pq.StringArray `json:"endpoints" gorm:"type:text[]"`
	UserAgentClass  string         `json:"ua_class"`
	UserAgentDigest string         `json:"ua_digest"`
	Cadence         string         `json:"cadence"`
	Severity        int            `json:"severity"`
	SourceCount     int            `json:"source_count"`
	RequestCount    int64          `json:"request_count"`
	DetectedAt      time.Time      `json:"detected_at"`
	ReportedBy      string         `json:"reported_by"`
	Pattern         string         `json:"pattern"`
	LedgerSynced    bool           `json:"ledger_synced"`
	LedgerRef       string         `json:"ledger_ref,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (AttackPattern) TableName() string {
	return "attack_patterns"
}

func (a *AttackPattern) Descriptor() Descriptor {
	return NewDescriptor(a.Endpoints, a.UserAgentClass, a.UserAgentDigest, Cadence(a.Cadence))
}

//go:generate mockery --name=Repository --dir=. --output=./mocks --filename=repository_mock.go --case=underscore --with-expecter
type Repository interface {
	// Save inserts the pattern; saving the same hash and bucket twice is a no-op.
	Save(ctx context.Context, pattern *AttackPattern) error
	List(ctx context.Context, limit int) ([]AttackPattern, error)
	ListPendingSync(ctx context.Context, limit int) ([]AttackPattern, error)
	MarkSynced(ctx context.Context, id uuid.UUID, ref string) error
	Count(ctx context.Context) (int64, error)
}
