package subscriber_test

import (
	"context"
	"testing"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/subscriber"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProjection struct {
	marked           []ledger.Entry
	forgotten        []string
	signaturesPurged int
}

func (p *fakeProjection) MarkBlocked(entry ledger.Entry) { p.marked = append(p.marked, entry) }
func (p *fakeProjection) Forget(sourceHash string)       { p.forgotten = append(p.forgotten, sourceHash) }
func (p *fakeProjection) ForgetSignatures()              { p.signaturesPurged++ }

type fakeBroadcaster struct{ got []event.ThreatDecisionEvent }

func (b *fakeBroadcaster) Broadcast(evt event.ThreatDecisionEvent) { b.got = append(b.got, evt) }

func TestBlockStatusChanged_PeerBlockIsProjected(t *testing.T) {
	p := &fakeProjection{}
	sub := subscriber.NewBlockStatusChangedEventSubscriber(logrus.New(), p, "gw-1")

	err := sub.OnEvent(context.Background(), event.BlockStatusChangedEvent{
		SourceHash: "0xabc",
		Blocked:    true,
		BlockedAt:  100,
		ExpiresAt:  200,
		Reason:     "Auto-blocked: threat score 85 (threshold: 80)",
		Origin:     "gw-2",
	})
	require.NoError(t, err)
	require.Len(t, p.marked, 1)
	assert.Equal(t, int64(200), p.marked[0].ExpiresAt)
	assert.Empty(t, p.forgotten)
}

func TestBlockStatusChanged_UnblockForgets(t *testing.T) {
	p := &fakeProjection{}
	sub := subscriber.NewBlockStatusChangedEventSubscriber(logrus.New(), p, "gw-1")

	require.NoError(t, sub.OnEvent(context.Background(), event.BlockStatusChangedEvent{SourceHash: "0xabc", Origin: "gw-2"}))
	assert.Equal(t, []string{"0xabc"}, p.forgotten)
}

func TestBlockStatusChanged_IgnoresOwnEvents(t *testing.T) {
	p := &fakeProjection{}
	sub := subscriber.NewBlockStatusChangedEventSubscriber(logrus.New(), p, "gw-1")

	require.NoError(t, sub.OnEvent(context.Background(), event.BlockStatusChangedEvent{SourceHash: "0xabc", Origin: "gw-1"}))
	assert.Empty(t, p.forgotten)
	assert.Empty(t, p.marked)
}

func TestSignaturesChanged_PurgesCache(t *testing.T) {
	p := &fakeProjection{}
	sub := subscriber.NewSignaturesChangedEventSubscriber(logrus.New(), p)

	require.NoError(t, sub.OnEvent(context.Background(), event.SignaturesChangedEvent{PatternHash: "0x1"}))
	assert.Equal(t, 1, p.signaturesPurged)
}

func TestThreatDecision_Broadcasts(t *testing.T) {
	b := &fakeBroadcaster{}
	sub := subscriber.NewThreatDecisionEventSubscriber(b)

	require.NoError(t, sub.OnEvent(context.Background(), event.ThreatDecisionEvent{SourceHash: "0x1", Score: 42}))
	require.Len(t, b.got, 1)
	assert.Equal(t, 42, b.got[0].Score)
}
