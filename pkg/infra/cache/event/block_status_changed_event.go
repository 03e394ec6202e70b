package event

type BlockStatusChangedEvent struct {
	SourceHash string `json:"source_hash"`
	Blocked    bool   `json:"blocked"`
	BlockedAt  int64  `json:"blocked_at,omitempty"`
	// ExpiresAt is a unix timestamp, 0 for a block without expiry.
	ExpiresAt int64  `json:"expires_at"`
	Reason    string `json:"reason,omitempty"`
	Manual    bool   `json:"manual"`
	Origin    string `json:"origin"`
}

func (e BlockStatusChangedEvent) Type() string {
	return BlockStatusChangedEventType
}
