package channel

type Channel string

const (
	ThreatEventsChannel Channel = "threatgate_events"
)
