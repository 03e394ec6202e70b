package threat

import "time"

type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

type Action string

const (
	ActionAllowed    Action = "allowed"
	ActionChallenged Action = "challenged"
	ActionBlocked    Action = "blocked"
)

// Cause records which branch of the pipeline produced a verdict.
type Cause string

const (
	CauseScore           Cause = "score"
	CauseAutoBlock       Cause = "auto_blocked"
	CauseLedgerBlock     Cause = "ledger_blocked"
	CauseChallengeBlock  Cause = "challenge_blocked"
	CauseInvalidInput    Cause = "invalid_input"
	CauseWhitelisted     Cause = "whitelisted"
	CauseChallengePassed Cause = "challenge_passed"
	CauseSessionExempt   Cause = "session_exempt"
)

type Verdict struct {
	Action            Action        `json:"action"`
	Cause             Cause         `json:"cause"`
	Score             int           `json:"score"`
	Tier              Tier          `json:"tier"`
	Factors           Breakdown     `json:"factors"`
	RetryAfter        time.Duration `json:"-"`
	Reason            string        `json:"reason,omitempty"`
	ChallengeRequired bool          `json:"challenge_required"`
	SourceHash        string        `json:"source_hash"`
	Sequence          uint64        `json:"sequence"`
	ArrivedAt         time.Time     `json:"arrived_at"`
	Degraded          bool          `json:"degraded,omitempty"`
}

// EventAction is the action stored on the security event record: the plain verdict
// action for scored decisions, the cause otherwise.
func (v Verdict) EventAction() string {
	switch v.Cause {
	case CauseAutoBlock, CauseLedgerBlock, CauseChallengeBlock, CauseInvalidInput:
		return string(v.Cause)
	default:
		return string(v.Action)
	}
}

func (v Verdict) RetryAfterSeconds() int {
	if v.RetryAfter <= 0 {
		return 0
	}
	secs := int(v.RetryAfter / time.Second)
	if v.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}
