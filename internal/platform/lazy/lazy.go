// Package lazy loads a value on first use with a bounded retry policy.
//
// A Loader runs its load function at most once successfully. Concurrent callers
// share a single in-flight load, and a failed load is not cached, so the next
// caller starts a fresh round of attempts.
package lazy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Policy bounds how a load is attempted.
type Policy struct {
	Attempts   int
	Timeout    time.Duration // per attempt; zero means no limit
	Backoff    time.Duration // delay before the second attempt, doubled after each failure
	MaxBackoff time.Duration
}

// DefaultPolicy returns 3 attempts, 10s each, backing off from 250ms up to 2s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Timeout:    10 * time.Second,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.MaxBackoff > 0 && p.Backoff > p.MaxBackoff {
		p.Backoff = p.MaxBackoff
	}
	return p
}

// LoadError reports that every attempt of a load failed.
type LoadError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s failed after %d attempt(s): %v", e.Name, e.Attempts, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Result describes one finished load, successful or not.
type Result struct {
	Name     string
	Attempts int
	Duration time.Duration
	Err      error
}

// Tracker observes finished loads.
type Tracker interface {
	Track(Result)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(Result)

func (f TrackerFunc) Track(r Result) { f(r) }

// LogTracker logs each load with slog.
func LogTracker(logger *slog.Logger) Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return TrackerFunc(func(r Result) {
		if r.Err != nil {
			logger.Warn("lazy load failed",
				"name", r.Name, "attempts", r.Attempts, "duration", r.Duration, "error", r.Err)
			return
		}
		logger.Debug("lazy load complete",
			"name", r.Name, "attempts", r.Attempts, "duration", r.Duration)
	})
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	policy  Policy
	tracker Tracker
}

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithTracker sets the load observer.
func WithTracker(t Tracker) Option {
	return func(o *options) { o.tracker = t }
}

// Loader lazily produces a value of type T.
type Loader[T any] struct {
	name    string
	load    func(context.Context) (T, error)
	policy  Policy
	tracker Tracker

	group singleflight.Group

	mu    sync.RWMutex
	ready bool
	value T
}

// New creates a Loader. name identifies the load in errors and tracking.
func New[T any](name string, load func(context.Context) (T, error), opts ...Option) *Loader[T] {
	o := options{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[T]{
		name:    name,
		load:    load,
		policy:  o.policy.normalized(),
		tracker: o.tracker,
	}
}

// Name returns the loader's name.
func (l *Loader[T]) Name() string { return l.name }

// Peek returns the loaded value without triggering a load.
func (l *Loader[T]) Peek() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.ready
}

// Ready reports whether a load has succeeded.
func (l *Loader[T]) Ready() bool {
	_, ok := l.Peek()
	return ok
}

// Get returns the value, loading it if needed. If ctx ends first, Get returns
// ctx.Err() while the shared load keeps running for later callers.
func (l *Loader[T]) Get(ctx context.Context) (T, error) {
	if v, ok := l.Peek(); ok {
		return v, nil
	}

	ch := l.group.DoChan(l.name, func() (any, error) {
		if v, ok := l.Peek(); ok {
			return v, nil
		}
		v, err := l.run(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.value, l.ready = v, true
		l.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (l *Loader[T]) run(ctx context.Context) (T, error) {
	start := time.Now()
	delay := l.policy.Backoff

	var (
		zero    T
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= l.policy.Attempts; attempt++ {
		v, err := l.attempt(ctx)
		if err == nil {
			l.track(Result{Name: l.name, Attempts: attempt, Duration: time.Since(start)})
			return v, nil
		}
		lastErr = err
		if IsPermanent(err) || attempt == l.policy.Attempts {
			break
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
			delay *= 2
			if l.policy.MaxBackoff > 0 && delay > l.policy.MaxBackoff {
				delay = l.policy.MaxBackoff
			}
		}
	}
	if attempt > l.policy.Attempts {
		attempt = l.policy.Attempts
	}

	loadErr := &LoadError{Name: l.name, Attempts: attempt, Err: lastErr}
	l.track(Result{Name: l.name, Attempts: attempt, Duration: time.Since(start), Err: loadErr})
	return zero, loadErr
}

func (l *Loader[T]) attempt(ctx context.Context) (T, error) {
	if l.policy.Timeout <= 0 {
		return l.load(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, l.policy.Timeout)
	defer cancel()
	return l.load(actx)
}

func (l *Loader[T]) track(r Result) {
	if l.tracker != nil {
		l.tracker.Track(r)
	}
}
