package event

import "reflect"

type Event interface {
	Type() string
}

var (
	BlockStatusChangedEventType = "BlockStatusChangedEvent"
	SignaturesChangedEventType  = "SignaturesChangedEvent"
	ThreatDecisionEventType     = "ThreatDecisionEvent"
)

var Registry = map[string]reflect.Type{
	BlockStatusChangedEventType: reflect.TypeOf(BlockStatusChangedEvent{}),
	SignaturesChangedEventType:  reflect.TypeOf(SignaturesChangedEvent{}),
	ThreatDecisionEventType:     reflect.TypeOf(ThreatDecisionEvent{}),
}
