package ledger

import (
	"context"
	"time"
)

type (
	TxRef        string
	SignatureRef string
)

// Entry is the ledger's view of one blocked source hash.
type Entry struct {
	SourceHash string `json:"source_hash"`
	Reason     string `json:"reason"`
	Manual     bool   `json:"manual"`
	BlockedAt  int64  `json:"blocked_at"`
	// ExpiresAt is a unix timestamp, zero means the entry never expires.
	ExpiresAt int64 `json:"expires_at"`
	TxRef     TxRef `json:"tx_ref"`
}

func (e *Entry) Expiry() (time.Time, bool) {
	if e.ExpiresAt == 0 {
		return time.Time{}, false
	}
	return time.Unix(e.ExpiresAt, 0), true
}

func (e *Entry) Active(now time.Time) bool {
	if e == nil {
		return false
	}
	exp, ok := e.Expiry()
	return !ok || now.Before(exp)
}

// RetryAfter is the time left on the block, zero for permanent entries.
func (e *Entry) RetryAfter(now time.Time) time.Duration {
	exp, ok := e.Expiry()
	if !ok {
		return 0
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}

type Signature struct {
	PatternHash string       `json:"pattern_hash"`
	Pattern     string       `json:"pattern"`
	Severity    int          `json:"severity"`
	ReportedAt  int64        `json:"reported_at"`
	Reporter    string       `json:"reporter"`
	Ref         SignatureRef `json:"ref"`
}

type VerifyReport struct {
	Length    int64  `json:"length"`
	Head      string `json:"head"`
	Valid     bool   `json:"valid"`
	BrokenAt  int64  `json:"broken_at,omitempty"`
	BrokenErr string `json:"error,omitempty"`
}

// Ledger is the shared blocklist registry. Implementations wrap transport failures
// with domain.ErrLedgerUnavailable.
//
//go:generate mockery --name=Ledger --dir=. --output=./mocks --filename=ledger_mock.go --case=underscore --with-expecter
type Ledger interface {
	IsBlocked(ctx context.Context, sourceHash string) (bool, error)
	Lookup(ctx context.Context, sourceHash string) (*Entry, error)
	Block(ctx context.Context, sourceHash string, expiresAt time.Time, reason string, manual bool) (TxRef, error)
	Unblock(ctx context.Context, sourceHash string) (TxRef, error)
	AddSignature(ctx context.Context, pattern string, severity int) (SignatureRef, error)
	AllSignatures(ctx context.Context) ([]Signature, error)
	Verify(ctx context.Context) (*VerifyReport, error)
}
