package logger

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"
)

// AsyncFileWriter buffers log lines on a channel and flushes them from a single
// goroutine. Lines are dropped when the channel is full.
type AsyncFileWriter struct {
	writer  *bufio.Writer
	sink    io.WriteCloser
	mu      sync.Mutex
	logChan chan []byte
	done    chan struct{}
	closed  sync.Once
	wg      sync.WaitGroup
}

func NewAsyncFileWriter(sink io.WriteCloser, bufferSize int) *AsyncFileWriter {
	aw := &AsyncFileWriter{
		writer:  bufio.NewWriterSize(sink, bufferSize),
		sink:    sink,
		logChan: make(chan []byte, 1000),
		done:    make(chan struct{}),
	}
	aw.wg.Add(1)
	go aw.processLogs()
	return aw
}

func (aw *AsyncFileWriter) Write(p []byte) (n int, err error) {
	select {
	case aw.logChan <- append([]byte{}, p...):
		return len(p), nil
	default:
		return 0, nil
	}
}

func (aw *AsyncFileWriter) processLogs() {
	defer aw.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case logData := <-aw.logChan:
			aw.mu.Lock()
			if _, err := aw.writer.Write(logData); err != nil {
				fmt.Println("error writing log data to file", err)
			}
			aw.mu.Unlock()

		case <-ticker.C:
			aw.mu.Lock()
			_ = aw.writer.Flush()
			aw.mu.Unlock()

		case <-aw.done:
			aw.drain()
			return
		}
	}
}

func (aw *AsyncFileWriter) drain() {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	for {
		select {
		case logData := <-aw.logChan:
			_, _ = aw.writer.Write(logData)
		default:
			_ = aw.writer.Flush()
			return
		}
	}
}

func (aw *AsyncFileWriter) Close() error {
	aw.closed.Do(func() {
		close(aw.done)
	})
	aw.wg.Wait()
	return aw.sink.Close()
}
