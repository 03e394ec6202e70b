package blocklist

import (
	"time"

	"github.com/google/uuid"
)

const (
	CreatedBySystem = "system"
)

// BlockedSource is the local record of a block decision. A nil ExpiresAt only
// occurs on manual entries.
type BlockedSource struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	SourceHash   string     `json:"source_hash" gorm:"uniqueIndex;not null"`
	BlockedAt    time.Time  `json:"blocked_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Reason       string     `json:"reason"`
	CreatedBy    string     `json:"created_by"`
	Manual       bool       `json:"manual"`
	ThreatScore  int        `json:"threat_score"`
	LedgerSynced bool       `json:"ledger_synced"`
	TxRef        string     `json:"tx_ref,omitempty"`
	SyncAttempts int        `json:"sync_attempts"`
	RemovedAt    *time.Time `json:"removed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (BlockedSource) TableName() string {
	return "blocked_sources"
}

func (b *BlockedSource) Removed() bool {
	return b.RemovedAt != nil
}

func (b *BlockedSource) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

func (b *BlockedSource) Active(now time.Time) bool {
	return !b.Removed() && !b.Expired(now)
}

// Sweepable reports whether the expiry sweeper may remove the entry.
func (b *BlockedSource) Sweepable(now time.Time) bool {
	return !b.Manual && !b.Removed() && b.Expired(now)
}

func (b *BlockedSource) RetryAfter(now time.Time) time.Duration {
	if b.ExpiresAt == nil {
		return 0
	}
	if d := b.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
