package securityevent

import (
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/google/uuid"
)

// Record is one immutable row per processed request.
type Record struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Sequence         uint64    `json:"sequence" gorm:"index:idx_security_events_instance_seq"`
	InstanceID       string    `json:"instance_id" gorm:"index:idx_security_events_instance_seq"`
	ArrivedAt        time.Time `json:"arrived_at" gorm:"index"`
	SourceHash       string    `json:"source_hash" gorm:"index"`
	Endpoint         string    `json:"endpoint"`
	Method           string    `json:"method"`
	UserAgent        string    `json:"user_agent"`
	RateScore        int       `json:"rate_score"`
	PatternScore     int       `json:"pattern_score"`
	SessionScore     int       `json:"session_score"`
	EntropyScore     int       `json:"entropy_score"`
	AuthFailureScore int       `json:"auth_failure_score"`
	SignatureScore   int       `json:"signature_score"`
	TotalScore       int       `json:"total_score"`
	Tier             string    `json:"tier"`
	Action           string    `json:"action" gorm:"index"`
	Reason           string    `json:"reason"`
	Country          string    `json:"country,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Record) TableName() string {
	return "security_events"
}

func NewRecord(instanceID string, fp threat.Fingerprint, v threat.Verdict) *Record {
	return &Record{
		ID:               uuid.New(),
		Sequence:         v.Sequence,
		InstanceID:       instanceID,
		ArrivedAt:        v.ArrivedAt,
		SourceHash:       v.SourceHash,
		Endpoint:         fp.Endpoint,
		Method:           fp.Method,
		UserAgent:        fp.UserAgent,
		RateScore:        v.Factors.Rate,
		PatternScore:     v.Factors.Pattern,
		SessionScore:     v.Factors.Session,
		EntropyScore:     v.Factors.Entropy,
		AuthFailureScore: v.Factors.AuthFailure,
		SignatureScore:   v.Factors.Signature,
		TotalScore:       v.Score,
		Tier:             string(v.Tier),
		Action:           v.EventAction(),
		Reason:           v.Reason,
	}
}

func (r *Record) Breakdown() threat.Breakdown {
	return threat.Breakdown{
		Rate:        r.RateScore,
		Pattern:     r.PatternScore,
		Session:     r.SessionScore,
		Entropy:     r.EntropyScore,
		AuthFailure: r.AuthFailureScore,
		Signature:   r.SignatureScore,
	}
}
