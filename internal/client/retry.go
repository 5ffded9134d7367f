package client

import (
	"context"
	"errors"
	"time"
)

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

var TimerSleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// transientError marks a failure worth another attempt: 429, 503 or a
// network-level error. status is 0 for network errors.
type transientError struct {
	status int
	err    error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

type retryAction int

const (
	actionDone retryAction = iota
	actionFail
	actionRetry
	actionGiveUp
)

func (a retryAction) String() string {
	switch a {
	case actionDone:
		return "done"
	case actionFail:
		return "fail"
	case actionRetry:
		return "retry"
	case actionGiveUp:
		return "give_up"
	}
	return "unknown"
}

// retryState tracks one Call. attempts counts completed attempts.
type retryState struct {
	maxAttempts int
	attempts    int
	lastErr     error
}

func newRetryState(maxAttempts int) *retryState {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryState{maxAttempts: maxAttempts}
}

// record feeds the outcome of an attempt and returns the next transition.
func (s *retryState) record(err error) retryAction {
	s.attempts++
	s.lastErr = err
	switch {
	case err == nil:
		return actionDone
	case !isTransient(err):
		return actionFail
	case s.attempts >= s.maxAttempts:
		return actionGiveUp
	default:
		return actionRetry
	}
}

// backoff is the wait before the next attempt: 2^i seconds, where i is the
// zero-based index of the attempt that just failed.
func (s *retryState) backoff() time.Duration {
	return time.Duration(1<<(s.attempts-1)) * time.Second
}
