package threat

type Factor string

const (
	FactorRate        Factor = "rate"
	FactorPattern     Factor = "pattern"
	FactorSession     Factor = "session"
	FactorEntropy     Factor = "entropy"
	FactorAuthFailure Factor = "auth_failure"
	FactorSignature   Factor = "signature"
)

// Breakdown holds the individual factor scores of one assessment.
type Breakdown struct {
	Rate        int `json:"rate"`
	Pattern     int `json:"pattern"`
	Session     int `json:"session"`
	Entropy     int `json:"entropy"`
	AuthFailure int `json:"auth_failure"`
	Signature   int `json:"signature"`
}

func (b Breakdown) Sum() int {
	return b.Rate + b.Pattern + b.Session + b.Entropy + b.AuthFailure + b.Signature
}

// Total is the sum of all factors capped at maxScore.
func (b Breakdown) Total(maxScore int) int {
	sum := b.Sum()
	if sum > maxScore {
		return maxScore
	}
	return sum
}

func (b Breakdown) AsMap() map[Factor]int {
	return map[Factor]int{
		FactorRate:        b.Rate,
		FactorPattern:     b.Pattern,
		FactorSession:     b.Session,
		FactorEntropy:     b.Entropy,
		FactorAuthFailure: b.AuthFailure,
		FactorSignature:   b.Signature,
	}
}
