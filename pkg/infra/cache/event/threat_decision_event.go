package event

type ThreatDecisionEvent struct {
	InstanceID string         `json:"instance_id"`
	Sequence   uint64         `json:"sequence"`
	SourceHash string         `json:"source_hash"`
	Endpoint   string         `json:"endpoint"`
	Method     string         `json:"method"`
	Score      int            `json:"score"`
	Tier       string         `json:"tier"`
	Action     string         `json:"action"`
	Reason     string         `json:"reason,omitempty"`
	Factors    map[string]int `json:"factors"`
	ArrivedAt  int64          `json:"arrived_at"`
}

func (e ThreatDecisionEvent) Type() string {
	return ThreatDecisionEventType
}
