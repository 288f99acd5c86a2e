package lazy_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/p-n-ai/study-centre/internal/platform/lazy"
)

func fastPolicy(attempts int) lazy.Policy {
	return lazy.Policy{
		Attempts:   attempts,
		Timeout:    time.Second,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}
}

func TestLoader_LoadsOnce(t *testing.T) {
	var calls atomic.Int32
	l := lazy.New("section", func(context.Context) (string, error) {
		calls.Add(1)
		return "content", nil
	}, lazy.WithPolicy(fastPolicy(3)))

	if l.Ready() {
		t.Fatal("Ready() = true before first Get")
	}
	for range 3 {
		v, err := l.Get(t.Context())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if v != "content" {
			t.Errorf("Get() = %q, want content", v)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("load calls = %d, want 1", calls.Load())
	}
	if !l.Ready() {
		t.Error("Ready() = false after successful Get")
	}
}

func TestLoader_ConcurrentCallersShareLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := lazy.New("shared", func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}, lazy.WithPolicy(fastPolicy(1)))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background())
			if err == nil && v != 42 {
				err = errors.New("wrong value")
			}
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Get() error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("load calls = %d, want 1", calls.Load())
	}
}

func TestLoader_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var tracked []lazy.Result
	l := lazy.New("flaky", func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("chunk fetch failed")
		}
		return "ok", nil
	},
		lazy.WithPolicy(fastPolicy(3)),
		lazy.WithTracker(lazy.TrackerFunc(func(r lazy.Result) { tracked = append(tracked, r) })),
	)

	v, err := l.Get(t.Context())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != "ok" {
		t.Errorf("Get() = %q, want ok", v)
	}
	if len(tracked) != 1 || tracked[0].Attempts != 3 || tracked[0].Err != nil {
		t.Errorf("tracked = %+v, want one success after 3 attempts", tracked)
	}
}

func TestLoader_ExhaustedReturnsLoadErrorAndRetriesLater(t *testing.T) {
	var calls atomic.Int32
	fail := errors.New("unavailable")
	l := lazy.New("broken", func(context.Context) (string, error) {
		calls.Add(1)
		return "", fail
	}, lazy.WithPolicy(fastPolicy(2)))

	_, err := l.Get(t.Context())
	var loadErr *lazy.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Get() error = %v, want *LoadError", err)
	}
	if loadErr.Name != "broken" || loadErr.Attempts != 2 {
		t.Errorf("LoadError = %+v, want name broken after 2 attempts", loadErr)
	}
	if !errors.Is(err, fail) {
		t.Error("LoadError should wrap the last attempt error")
	}

	_, _ = l.Get(t.Context())
	if calls.Load() != 4 {
		t.Errorf("load calls = %d, want failures not cached (4 calls)", calls.Load())
	}
}

func TestLoader_PermanentErrorStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	l := lazy.New("invalid", func(context.Context) (string, error) {
		calls.Add(1)
		return "", lazy.Permanent(errors.New("answer index out of range"))
	}, lazy.WithPolicy(fastPolicy(5)))

	_, err := l.Get(t.Context())
	if err == nil {
		t.Fatal("Get() should fail")
	}
	if !lazy.IsPermanent(err) {
		t.Error("IsPermanent() = false, want true through LoadError")
	}
	if calls.Load() != 1 {
		t.Errorf("load calls = %d, want 1", calls.Load())
	}
}

func TestLoader_AttemptTimeout(t *testing.T) {
	l := lazy.New("slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, lazy.WithPolicy(lazy.Policy{Attempts: 2, Timeout: 5 * time.Millisecond}))

	_, err := l.Get(t.Context())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get() error = %v, want DeadlineExceeded", err)
	}
}

func TestLoader_CallerCancelDoesNotAbortLoad(t *testing.T) {
	release := make(chan struct{})
	l := lazy.New("detached", func(ctx context.Context) (string, error) {
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, lazy.WithPolicy(fastPolicy(1)))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get() error = %v, want caller deadline", err)
	}

	close(release)
	v, err := l.Get(t.Context())
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if v != "done" {
		t.Errorf("Get() = %q, want done", v)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if lazy.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
