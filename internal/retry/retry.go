// Package retry provides a small policy-driven retry helper shared by the
// API client, SSH probing, and provisioning steps.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how many times an operation is attempted and how long to
// wait between attempts. Delays[i] is the wait after attempt i fails; when
// attempts outnumber delays, the last delay repeats.
type Policy struct {
	Attempts int
	Delays   []time.Duration
}

// Fixed returns a policy with the same delay between every attempt.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delays: []time.Duration{delay}}
}

// Ladder returns a policy whose per-attempt delays follow the given sequence.
// The number of attempts is one more than the number of delays.
func Ladder(delays ...time.Duration) Policy {
	return Policy{Attempts: len(delays) + 1, Delays: delays}
}

func (p Policy) delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt >= len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[attempt]
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so Do stops retrying and returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op up to p.Attempts times, sleeping the policy delay between
// attempts. It returns nil on the first success, the unwrapped error as soon
// as op returns a Permanent error, and otherwise the error from the final
// attempt. Context cancellation aborts the wait.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := range attempts {
		err = op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == attempts-1 {
			break
		}

		if wait := p.delay(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return err
}
