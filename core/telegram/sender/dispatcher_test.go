package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	t.Cleanup(d.Close)
	return d
}

func TestDoRetriesTransientErrors(t *testing.T) {
	d := newTestDispatcher(t)
	var calls atomic.Int32

	err := d.Do(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("expected no failures, got %d", d.ErrorCount())
	}
}

func TestDoReturnsPermanentError(t *testing.T) {
	d := newTestDispatcher(t)
	var calls atomic.Int32
	want := errors.New("telegram: chat not found (400)")

	err := d.Do(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", got)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("expected 1 failure, got %d", d.ErrorCount())
	}
}

func TestDoWaitsOutFloodControl(t *testing.T) {
	d := newTestDispatcher(t)
	var calls atomic.Int32

	err := d.Do(context.Background(), "send.photo", "sendPhoto", func() error {
		if calls.Add(1) == 1 {
			return tele.FloodError{RetryAfter: 0}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	d := newTestDispatcher(t)
	var calls atomic.Int32

	err := d.Do(context.Background(), "send.photo", "sendPhoto", func() error {
		calls.Add(1)
		return timeoutErr{}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

type sendRecorder struct {
	mu     sync.Mutex
	status []string
}

func (r *sendRecorder) ObserveSend(_, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, status)
}

func TestDoReportsToObserver(t *testing.T) {
	rec := &sendRecorder{}
	d := NewDispatcher(Options{Workers: 1, Observer: rec})
	t.Cleanup(d.Close)

	_ = d.Do(context.Background(), "send.text", "sendMessage", func() error { return nil })
	_ = d.Do(context.Background(), "send.text", "sendMessage", func() error {
		return errors.New("telegram: chat not found (400)")
	})
	if len(rec.status) != 2 || rec.status[0] != "ok" || rec.status[1] != "http_4xx" {
		t.Fatalf("observed %v", rec.status)
	}
}

func TestDoAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()

	err := d.Do(context.Background(), "send.text", "sendMessage", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed from Enqueue, got %v", err)
	}
}

func TestDoRejectsNilRun(t *testing.T) {
	d := newTestDispatcher(t)
	if err := d.Do(context.Background(), "send.text", "sendMessage", nil); err == nil {
		t.Fatal("expected error for nil run")
	}
}

func TestEnqueueRunsJob(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	done := make(chan struct{})

	if err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	d.Close()
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AA-bb_cc/sendMessage": timeout`)
	got := sanitizeErrorMessage(err)
	want := `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{timeoutErr{}, "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("telegram: Bad Request (400)"), "http_4xx"},
		{errors.New("telegram: Bad Gateway (502)"), "http_5xx"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := classifyError(tt.err); got != tt.want {
			t.Errorf("classifyError(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
