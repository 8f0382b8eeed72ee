package netutil

import (
	"io"
	"net/http"
	"time"
)

// RetryTransport retries round trips that fail with transient network
// errors. GET and HEAD requests are also retried on 429 and 5xx gateway
// statuses; the last response is returned when attempts run out.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	Backoff    time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.MaxRetries + 1
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		last := attempt >= attempts
		switch {
		case err != nil:
			if last || !ShouldRetry(err) {
				return nil, err
			}
		case !last && idempotent(req.Method) && RetryStatus(resp.StatusCode):
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()
		default:
			return resp, nil
		}

		if req, err = rewind(req); err != nil {
			return nil, err
		}
		if err := t.sleep(req, attempt); err != nil {
			return nil, err
		}
	}
}

// rewind returns a clone of req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

func (t *RetryTransport) sleep(req *http.Request, attempt int) error {
	delay := t.Backoff * time.Duration(attempt)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
