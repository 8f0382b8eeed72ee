package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

const (
	defaultBufSize = 64 * 1024
	queueSize      = 256
)

// output is a log destination. problemsOnly outputs receive WARN and above.
type output struct {
	w            io.Writer
	problemsOnly bool
}

type sink struct {
	buf          *bufio.Writer
	problemsOnly bool
}

type entry struct {
	level slog.Level
	line  []byte
}

// asyncWriter fans formatted lines out to its sinks from a single goroutine,
// so callers never block on disk or stdout unless the queue is full.
type asyncWriter struct {
	queue    chan entry
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once
	sinks    []sink

	errMu    sync.Mutex
	writeErr error
}

func newAsyncWriter(outputs []output, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	sinks := make([]sink, 0, len(outputs))
	for _, o := range outputs {
		if o.w == nil {
			continue
		}
		sinks = append(sinks, sink{buf: bufio.NewWriterSize(o.w, bufSize), problemsOnly: o.problemsOnly})
	}
	aw := &asyncWriter{
		queue:    make(chan entry, queueSize),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				w.setErr(w.flushAll())
				return
			}
			w.setErr(w.writeAll(e))
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write queues a copy of line. It blocks only while the queue is full.
func (w *asyncWriter) Write(level slog.Level, line []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	w.queue <- entry{level: level, line: append([]byte(nil), line...)}
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return <-ack
	case <-w.done:
		return w.getErr()
	}
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) writeAll(e entry) error {
	for _, s := range w.sinks {
		if s.problemsOnly && e.level < slog.LevelWarn {
			continue
		}
		if _, err := s.buf.Write(e.line); err != nil {
			return err
		}
		if err := s.buf.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	var errs []error
	for _, s := range w.sinks {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
