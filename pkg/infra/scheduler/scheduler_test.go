package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestScheduler_Register(t *testing.T) {
	s := New(quietLogger())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register(Task{Name: "sweep", Interval: time.Minute, Run: noop}))
	assert.Error(t, s.Register(Task{Name: "sweep", Interval: time.Minute, Run: noop}))
	assert.Error(t, s.Register(Task{Name: "bad", Run: noop}))
	assert.Equal(t, []string{"sweep"}, s.Tasks())
}

func TestScheduler_RunOnce(t *testing.T) {
	s := New(quietLogger())
	var runs atomic.Int32
	boom := errors.New("boom")
	require.NoError(t, s.Register(Task{Name: "ok", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))
	require.NoError(t, s.Register(Task{Name: "fail", Interval: time.Hour, Run: func(context.Context) error { return boom }}))

	assert.NoError(t, s.RunOnce(context.Background(), "ok"))
	assert.ErrorIs(t, s.RunOnce(context.Background(), "fail"), boom)
	assert.Error(t, s.RunOnce(context.Background(), "missing"))
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_StopWaitsForRunningTask(t *testing.T) {
	s := New(quietLogger())
	started := make(chan struct{})
	var finished atomic.Bool
	var once atomic.Bool

	require.NoError(t, s.Register(Task{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Run: func(ctx context.Context) error {
			if once.CompareAndSwap(false, true) {
				close(started)
				time.Sleep(50 * time.Millisecond)
				finished.Store(ctx.Err() == nil)
			}
			return nil
		},
	}))

	s.Start(context.Background())
	<-started
	s.Stop()
	assert.True(t, finished.Load())
}
