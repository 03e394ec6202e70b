package securityevent_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	appSecurity "github.com/NeuralTrust/ThreatGate/pkg/app/securityevent"
	telemetryMocks "github.com/NeuralTrust/ThreatGate/pkg/app/telemetry/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/securityevent"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/securityevent/mocks"
	domainTelemetry "github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	cacheMocks "github.com/NeuralTrust/ThreatGate/pkg/infra/cache/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/worker"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type inlineWorker struct{}

func (inlineWorker) StartWorkers(int) {}
func (inlineWorker) Shutdown()        {}
func (inlineWorker) Submit(_ string, task worker.Task) bool {
	task(context.Background())
	return true
}

type fixedLocator string

func (l fixedLocator) Country(string) string { return string(l) }
func (fixedLocator) Close() error            { return nil }

type fixedCounter int64

func (c fixedCounter) CountActive(context.Context, time.Time) (int64, error) { return int64(c), nil }
func (c fixedCounter) Count(context.Context) (int64, error)                 { return int64(c), nil }

func overflowEvents(t *testing.T) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, prometheus.SecurityEventsOverflow.Write(m))
	return m.GetCounter().GetValue()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func blockedVerdict() (threat.Fingerprint, threat.Verdict) {
	fp := threat.Fingerprint{
		IP:         "203.0.113.7",
		SourceHash: "0xabc",
		Endpoint:   "/api/patients",
		Method:     "GET",
		UserAgent:  "curl/8.0",
	}
	v := threat.Verdict{
		Action:     threat.ActionBlocked,
		Cause:      threat.CauseAutoBlock,
		Score:      85,
		Tier:       threat.TierHigh,
		Factors:    threat.Breakdown{Rate: 20, Pattern: 25, Session: 20, Entropy: 15, Signature: 5},
		Reason:     "Auto-blocked: threat score 85 (threshold: 80)",
		SourceHash: "0xabc",
		Sequence:   42,
		ArrivedAt:  now,
	}
	return fp, v
}

func TestRecorder_RecordPersistsExportsAndPublishes(t *testing.T) {
	repo := new(mocks.Repository)
	publisher := new(cacheMocks.EventPublisher)
	exports := new(telemetryMocks.Dispatcher)

	repo.On("Save", mock.Anything, mock.MatchedBy(func(r *securityevent.Record) bool {
		return r.Sequence == 42 && r.Action == "auto_blocked" && r.Country == "ES" &&
			r.TotalScore == 85 && r.InstanceID == "gw-1" && r.CreatedAt.Equal(now)
	})).Return(nil).Once()
	exports.On("Dispatch", domainTelemetry.KindSecurityEvent, mock.Anything).Return().Once()
	publisher.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(e event.ThreatDecisionEvent) bool {
		return e.Sequence == 42 && e.Factors["rate"] == 20 && e.Action == "auto_blocked"
	})).Return(nil).Once()

	r := appSecurity.NewRecorder(quietLogger(), repo, inlineWorker{}, fixedLocator("ES"), publisher, exports,
		nil, nil, appSecurity.Config{InstanceID: "gw-1"}, appSecurity.WithTimeProvider(func() time.Time { return now }))
	fp, v := blockedVerdict()
	r.Record(fp, v)

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	exports.AssertExpectations(t)
}

func TestRecorder_SaveFailureStillFansOut(t *testing.T) {
	repo := new(mocks.Repository)
	publisher := new(cacheMocks.EventPublisher)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	r := appSecurity.NewRecorder(quietLogger(), repo, inlineWorker{}, nil, publisher, nil, nil, nil,
		appSecurity.Config{InstanceID: "gw-1"})
	fp, v := blockedVerdict()
	r.Record(fp, v)

	publisher.AssertExpectations(t)
}

func TestRecorder_FullQueueSavesInline(t *testing.T) {
	repo := new(mocks.Repository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	queue := worker.NewWorker(quietLogger(), "events", 1)
	r := appSecurity.NewRecorder(quietLogger(), repo, queue, nil, nil, nil, nil, nil, appSecurity.Config{})
	before := overflowEvents(t)

	fp, v := blockedVerdict()
	r.Record(fp, v)
	v.Sequence = 43
	r.Record(fp, v)

	assert.Equal(t, before+1, overflowEvents(t))
	repo.AssertNumberOfCalls(t, "Save", 1)
	repo.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(rec *securityevent.Record) bool {
		return rec.Sequence == 43
	}))

	queue.StartWorkers(1)
	queue.Shutdown()
	repo.AssertNumberOfCalls(t, "Save", 2)
}

func TestRecorder_Stats(t *testing.T) {
	repo := new(mocks.Repository)
	since := now.Add(-24 * time.Hour)
	repo.On("CountByAction", mock.Anything, since).Return(map[string]int64{
		"allowed":           90,
		"challenged":        6,
		"blocked":           2,
		"auto_blocked":      1,
		"ledger_blocked":    1,
		"challenge_blocked": 0,
	}, nil)
	repo.On("AverageScore", mock.Anything, since).Return(21.5, nil)

	r := appSecurity.NewRecorder(quietLogger(), repo, inlineWorker{}, nil, nil, nil, fixedCounter(3), fixedCounter(2),
		appSecurity.Config{}, appSecurity.WithTimeProvider(func() time.Time { return now }))
	stats, err := r.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(100), stats.Total)
	assert.Equal(t, int64(4), stats.Blocked)
	assert.Equal(t, int64(6), stats.Challenged)
	assert.Equal(t, 21.5, stats.AverageScore)
	assert.Equal(t, int64(3), stats.ActiveBlocks)
	assert.Equal(t, int64(2), stats.AttackPatterns)
	assert.Equal(t, "24h", stats.Window)
}

func TestRecorder_RecentClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 100},
		{"kept", 25, 25},
		{"clamped", 50000, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.Repository)
			repo.On("Recent", mock.Anything, securityevent.Query{Limit: tt.want, Action: "blocked"}).
				Return([]securityevent.Record{}, nil).Once()
			r := appSecurity.NewRecorder(quietLogger(), repo, inlineWorker{}, nil, nil, nil, nil, nil, appSecurity.Config{})

			_, err := r.Recent(context.Background(), securityevent.Query{Limit: tt.limit, Action: "blocked"})
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestRecorder_Trim(t *testing.T) {
	repo := new(mocks.Repository)
	repo.On("DeleteBefore", mock.Anything, now.Add(-720*time.Hour)).Return(int64(12), nil)
	r := appSecurity.NewRecorder(quietLogger(), repo, inlineWorker{}, nil, nil, nil, nil, nil,
		appSecurity.Config{Retention: 720 * time.Hour}, appSecurity.WithTimeProvider(func() time.Time { return now }))

	removed, err := r.Trim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), removed)

	disabled := appSecurity.NewRecorder(quietLogger(), repo, inlineWorker{}, nil, nil, nil, nil, nil, appSecurity.Config{})
	removed, err = disabled.Trim(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
	repo.AssertNumberOfCalls(t, "DeleteBefore", 1)
}
