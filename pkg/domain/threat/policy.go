package threat

import (
	"fmt"
	"time"
)

// Step awards Points when an observed value is strictly above Above.
type Step struct {
	Above  int64 `json:"above"`
	Points int   `json:"points"`
}

// RatioStep awards Points when a ratio is strictly above Above.
type RatioStep struct {
	Above  float64 `json:"above"`
	Points int     `json:"points"`
}

// Policy is the fixed threshold table shared by the score engine and the decision
// pipeline. Steps are evaluated in order, first match wins.
type Policy struct {
	Version string `json:"version"`

	MaxScore           int `json:"max_score"`
	MediumThreshold    int `json:"medium_threshold"`
	HighThreshold      int `json:"high_threshold"`
	AutoBlockThreshold int `json:"auto_block_threshold"`

	AutoBlockDuration time.Duration `json:"auto_block_duration"`
	TransientBlock    time.Duration `json:"transient_block"`

	RateWindow time.Duration `json:"rate_window"`
	RateSteps  []Step        `json:"rate_steps"`

	PatternWindow     time.Duration `json:"pattern_window"`
	PatternMaxLen     int64         `json:"pattern_max_len"`
	PatternMinSamples int           `json:"pattern_min_samples"`
	PatternSteps      []RatioStep   `json:"pattern_steps"`

	NoIdentityPoints  int           `json:"no_identity_points"`
	CookieOnlyPoints  int           `json:"cookie_only_points"`
	UserAgentWindow   time.Duration `json:"user_agent_window"`
	SingleAgentPoints int           `json:"single_agent_points"`
	ManyAgentsAbove   int           `json:"many_agents_above"`
	ManyAgentsPoints  int           `json:"many_agents_points"`

	AuthFailureWindow time.Duration `json:"auth_failure_window"`
	AuthFailureSteps  []Step        `json:"auth_failure_steps"`

	SignaturePoints int `json:"signature_points"`
}

const PolicyVersion = "2024.1"

func DefaultPolicy() Policy {
	return Policy{
		Version:            PolicyVersion,
		MaxScore:           100,
		MediumThreshold:    40,
		HighThreshold:      60,
		AutoBlockThreshold: 80,
		AutoBlockDuration:  24 * time.Hour,
		TransientBlock:     60 * time.Second,

		RateWindow: 60 * time.Second,
		RateSteps:  []Step{{Above: 100, Points: 20}, {Above: 50, Points: 15}, {Above: 30, Points: 10}},

		PatternWindow:     300 * time.Second,
		PatternMaxLen:     20,
		PatternMinSamples: 10,
		PatternSteps:      []RatioStep{{Above: 0.8, Points: 25}, {Above: 0.6, Points: 15}, {Above: 0.4, Points: 5}},

		NoIdentityPoints:  20,
		CookieOnlyPoints:  10,
		UserAgentWindow:   3600 * time.Second,
		SingleAgentPoints: 15,
		ManyAgentsAbove:   5,
		ManyAgentsPoints:  10,

		AuthFailureWindow: 600 * time.Second,
		AuthFailureSteps:  []Step{{Above: 10, Points: 10}, {Above: 5, Points: 7}, {Above: 3, Points: 3}},

		SignaturePoints: 30,
	}
}

// Classify maps a total score to its tier. Tiers are contiguous and disjoint.
func (p Policy) Classify(score int) Tier {
	switch {
	case score >= p.HighThreshold:
		return TierHigh
	case score >= p.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

func (p Policy) ShouldAutoBlock(score int) bool {
	return score >= p.AutoBlockThreshold
}

func (p Policy) AutoBlockReason(score int) string {
	return fmt.Sprintf("Auto-blocked: threat score %d (threshold: %d)", score, p.AutoBlockThreshold)
}

func (p Policy) Validate() error {
	if p.MaxScore <= 0 {
		return fmt.Errorf("max_score must be positive")
	}
	if !(0 < p.MediumThreshold && p.MediumThreshold < p.HighThreshold && p.HighThreshold <= p.AutoBlockThreshold) {
		return fmt.Errorf("thresholds must satisfy 0 < medium < high <= auto_block")
	}
	if p.AutoBlockThreshold > p.MaxScore {
		return fmt.Errorf("auto_block threshold %d exceeds max score %d", p.AutoBlockThreshold, p.MaxScore)
	}
	if p.AutoBlockDuration <= 0 {
		return fmt.Errorf("auto_block_duration must be positive")
	}
	return nil
}

func PointsFor(steps []Step, value int64) int {
	for _, s := range steps {
		if value > s.Above {
			return s.Points
		}
	}
	return 0
}

func RatioPointsFor(steps []RatioStep, ratio float64) int {
	for _, s := range steps {
		if ratio > s.Above {
			return s.Points
		}
	}
	return 0
}
