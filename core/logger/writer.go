package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter provides buffered asynchronous writes to one or more sinks.
// Lines are queued and drained by a single goroutine so that hot paths
// never block on file or terminal IO.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	sinks    []*bufio.Writer
	writeErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (aw *asyncWriter) loop() {
	for {
		select {
		case line, ok := <-aw.queue:
			if !ok {
				aw.drain()
				close(aw.done)
				return
			}
			aw.writeLine(line)
		case resp := <-aw.flushReq:
			aw.drain()
			resp <- aw.flushSinks()
		}
	}
}

func (aw *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-aw.queue:
			if !ok {
				return
			}
			aw.writeLine(line)
		default:
			return
		}
	}
}

func (aw *asyncWriter) writeLine(line []byte) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	for _, s := range aw.sinks {
		if _, err := s.Write(line); err != nil && aw.writeErr == nil {
			aw.writeErr = err
		}
	}
}

func (aw *asyncWriter) flushSinks() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	var errs []error
	if aw.writeErr != nil {
		errs = append(errs, aw.writeErr)
		aw.writeErr = nil
	}
	for _, s := range aw.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write enqueues a single log line; it copies the input so callers may reuse buffers.
func (aw *asyncWriter) Write(line []byte) error {
	cp := make([]byte, len(line))
	copy(cp, line)
	select {
	case <-aw.done:
		return errors.New("logger: writer closed")
	default:
	}
	select {
	case aw.queue <- cp:
		return nil
	case <-aw.done:
		return errors.New("logger: writer closed")
	}
}

// Flush blocks until all queued lines have been written to the sinks.
func (aw *asyncWriter) Flush() error {
	resp := make(chan error, 1)
	select {
	case aw.flushReq <- resp:
		return <-resp
	case <-aw.done:
		return aw.flushSinks()
	}
}

// Close flushes remaining output and stops the drain goroutine.
func (aw *asyncWriter) Close() error {
	aw.once.Do(func() {
		close(aw.queue)
	})
	<-aw.done
	return aw.flushSinks()
}
