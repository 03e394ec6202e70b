package logger

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (s *memorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestAsyncFileWriter_FlushesOnClose(t *testing.T) {
	sink := &memorySink{}
	w := NewAsyncFileWriter(sink, 1024)

	n, err := w.Write([]byte("first line\n"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	_, _ = w.Write([]byte("second line\n"))

	require.NoError(t, w.Close())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.True(t, sink.closed)
	assert.Equal(t, "first line\nsecond line\n", sink.buf.String())
}

func TestLevelFromEnv(t *testing.T) {
	assert.Equal(t, "debug", levelFromEnv("debug").String())
	assert.Equal(t, "warning", levelFromEnv("warn").String())
	assert.Equal(t, "info", levelFromEnv("").String())
	assert.Equal(t, "info", levelFromEnv("nope").String())
}
