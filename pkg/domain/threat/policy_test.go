package threat_test

import (
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/stretchr/testify/assert"
)

func TestPolicy_Classify(t *testing.T) {
	p := threat.DefaultPolicy()
	tests := []struct {
		score int
		want  threat.Tier
	}{
		{0, threat.TierLow},
		{39, threat.TierLow},
		{40, threat.TierMedium},
		{59, threat.TierMedium},
		{60, threat.TierHigh},
		{100, threat.TierHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Classify(tt.score), "score %d", tt.score)
	}
}

func TestPolicy_AutoBlock(t *testing.T) {
	p := threat.DefaultPolicy()
	assert.False(t, p.ShouldAutoBlock(79))
	assert.True(t, p.ShouldAutoBlock(80))
	assert.Equal(t, 24*time.Hour, p.AutoBlockDuration)
	assert.Equal(t, "Auto-blocked: threat score 85 (threshold: 80)", p.AutoBlockReason(85))
}

func TestPolicy_Validate(t *testing.T) {
	p := threat.DefaultPolicy()
	assert.NoError(t, p.Validate())

	p.HighThreshold = 30
	assert.Error(t, p.Validate())
}

func TestPointsFor(t *testing.T) {
	steps := threat.DefaultPolicy().RateSteps
	assert.Equal(t, 20, threat.PointsFor(steps, 101))
	assert.Equal(t, 15, threat.PointsFor(steps, 100))
	assert.Equal(t, 10, threat.PointsFor(steps, 31))
	assert.Equal(t, 0, threat.PointsFor(steps, 30))
}

func TestBreakdown_TotalIsCapped(t *testing.T) {
	b := threat.Breakdown{Rate: 20, Pattern: 25, Session: 20, Entropy: 15, AuthFailure: 10, Signature: 30}
	assert.Equal(t, 120, b.Sum())
	assert.Equal(t, 100, b.Total(100))
}

func TestVerdict_EventAction(t *testing.T) {
	v := threat.Verdict{Action: threat.ActionBlocked, Cause: threat.CauseAutoBlock}
	assert.Equal(t, "auto_blocked", v.EventAction())

	v = threat.Verdict{Action: threat.ActionChallenged, Cause: threat.CauseScore}
	assert.Equal(t, "challenged", v.EventAction())

	v = threat.Verdict{RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, 2, v.RetryAfterSeconds())
}
