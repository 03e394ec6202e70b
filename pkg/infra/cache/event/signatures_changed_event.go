package event

type SignaturesChangedEvent struct {
	PatternHash string `json:"pattern_hash"`
	Severity    int    `json:"severity"`
	Origin      string `json:"origin"`
}

func (e SignaturesChangedEvent) Type() string {
	return SignaturesChangedEventType
}
