package request

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/utils"
)

var sourceHashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

const maxReasonLength = 500

type BlockSourceRequest struct {
	SourceHash string `json:"source_hash"`
	// IP is hashed on arrival and never stored.
	IP              string `json:"ip"`
	Reason          string `json:"reason"`
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}

func (r *BlockSourceRequest) Validate() error {
	if (r.SourceHash == "") == (r.IP == "") {
		return errors.New("exactly one of source_hash or ip is required")
	}
	if r.IP != "" {
		if _, ok := utils.NormalizeIP(r.IP); !ok {
			return errors.New("ip is not a valid address")
		}
	}
	if r.SourceHash != "" && !ValidSourceHash(r.SourceHash) {
		return errors.New("source_hash must be a 0x-prefixed keccak-256 hex digest")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return errors.New("reason is required")
	}
	if len(r.Reason) > maxReasonLength {
		return errors.New("reason is too long")
	}
	if r.DurationSeconds != nil && *r.DurationSeconds <= 0 {
		return errors.New("duration_seconds must be positive")
	}
	return nil
}

// Hash returns the source hash the block applies to. Call Validate first.
func (r *BlockSourceRequest) Hash() string {
	if r.IP != "" {
		ip, _ := utils.NormalizeIP(r.IP)
		return utils.SourceHash(ip)
	}
	return strings.ToLower(r.SourceHash)
}

func (r *BlockSourceRequest) Duration() *time.Duration {
	if r.DurationSeconds == nil {
		return nil
	}
	d := time.Duration(*r.DurationSeconds) * time.Second
	return &d
}

func ValidSourceHash(hash string) bool {
	return sourceHashPattern.MatchString(strings.ToLower(hash))
}
