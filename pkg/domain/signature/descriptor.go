package signature

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/NeuralTrust/ThreatGate/pkg/utils"
)

const MixedUserAgents = "mixed"

// Cadence buckets a per-minute request count. Higher rank means faster.
type Cadence string

const (
	CadenceLow      Cadence = "low"
	CadenceSteady   Cadence = "steady"
	CadenceElevated Cadence = "elevated"
	CadenceHigh     Cadence = "high"
	CadenceBurst    Cadence = "burst"
)

var cadenceRank = map[Cadence]int{
	CadenceLow:      0,
	CadenceSteady:   1,
	CadenceElevated: 2,
	CadenceHigh:     3,
	CadenceBurst:    4,
}

func CadenceFor(requestsPerMinute int64) Cadence {
	switch {
	case requestsPerMinute > 100:
		return CadenceBurst
	case requestsPerMinute > 50:
		return CadenceHigh
	case requestsPerMinute > 30:
		return CadenceElevated
	case requestsPerMinute >= 10:
		return CadenceSteady
	default:
		return CadenceLow
	}
}

func (c Cadence) AtLeast(other Cadence) bool {
	return cadenceRank[c] >= cadenceRank[other]
}

// Descriptor is the similarity key shared by every source of a coordinated attack.
type Descriptor struct {
	Endpoints       []string `json:"endpoints"`
	UserAgentClass  string   `json:"ua_class"`
	UserAgentDigest string   `json:"ua_digest"`
	Cadence         Cadence  `json:"cadence"`
}

func NewDescriptor(endpoints []string, uaClass, uaDigest string, cadence Cadence) Descriptor {
	set := make(map[string]struct{}, len(endpoints))
	distinct := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if _, ok := set[e]; ok {
			continue
		}
		set[e] = struct{}{}
		distinct = append(distinct, e)
	}
	sort.Strings(distinct)
	return Descriptor{
		Endpoints:       distinct,
		UserAgentClass:  uaClass,
		UserAgentDigest: uaDigest,
		Cadence:         cadence,
	}
}

// Key is the canonical text form. Equal descriptors always produce equal keys.
func (d Descriptor) Key() string {
	b, _ := json.Marshal(d) //nolint:errcheck
	return string(b)
}

func (d Descriptor) Hash() string {
	return utils.Keccak256Hex(d.Key())
}

func (d Descriptor) Matches(endpoint, uaClass, uaDigest string, cadence Cadence) bool {
	if !cadence.AtLeast(d.Cadence) {
		return false
	}
	if d.UserAgentDigest != MixedUserAgents {
		if uaDigest != d.UserAgentDigest {
			return false
		}
	} else if uaClass != d.UserAgentClass {
		return false
	}
	idx := sort.SearchStrings(d.Endpoints, endpoint)
	return idx < len(d.Endpoints) && d.Endpoints[idx] == endpoint
}

// ParseDescriptor decodes the pattern text stored on the ledger, which is the
// descriptor Key. The ledger hashes that text, so it must stay canonical.
func ParseDescriptor(pattern string) (Descriptor, error) {
	var raw Descriptor
	if err := json.Unmarshal([]byte(pattern), &raw); err != nil {
		return Descriptor{}, err
	}
	if len(raw.Endpoints) == 0 {
		return Descriptor{}, fmt.Errorf("signature pattern has no endpoints")
	}
	return NewDescriptor(raw.Endpoints, raw.UserAgentClass, raw.UserAgentDigest, raw.Cadence), nil
}

// Pattern is the exported document for a minted signature.
type Pattern struct {
	Descriptor   Descriptor `json:"pattern_data"`
	SourceCount  int        `json:"ip_count"`
	RequestCount int64      `json:"request_count"`
	Severity     int        `json:"severity"`
	DetectedAt   string     `json:"detected_at"`
}

func (p Pattern) JSON() string {
	b, _ := json.Marshal(p) //nolint:errcheck
	return string(b)
}
