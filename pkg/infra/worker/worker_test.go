package worker

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestWorker_DrainsOnShutdown(t *testing.T) {
	w := NewWorker(quietLogger(), "test", 10)
	var done atomic.Int32

	for i := 0; i < 5; i++ {
		assert.True(t, w.Submit("count", func(context.Context) { done.Add(1) }))
	}
	w.StartWorkers(2)
	w.Shutdown()

	assert.Equal(t, int32(5), done.Load())
	assert.False(t, w.Submit("late", func(context.Context) {}))
}

func TestWorker_DropsWhenFull(t *testing.T) {
	var dropped []string
	w := NewWorker(quietLogger(), "test", 1, WithDropHook(func(name string) { dropped = append(dropped, name) }))

	assert.True(t, w.Submit("a", func(context.Context) {}))
	assert.False(t, w.Submit("b", func(context.Context) {}))
	assert.Equal(t, []string{"b"}, dropped)
	w.StartWorkers(1)
	w.Shutdown()
}

func TestWorker_SurvivesPanics(t *testing.T) {
	w := NewWorker(quietLogger(), "test", 4)
	var ran atomic.Bool

	w.Submit("boom", func(context.Context) { panic("boom") })
	w.Submit("after", func(context.Context) { ran.Store(true) })
	w.StartWorkers(1)
	w.Shutdown()

	assert.True(t, ran.Load())
}
