package cache

import (
	"errors"
	"testing"
	"time"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"wrong-scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := t.Context()
	c := NewMemoryCache(10)

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get(missing) error = %v, want ErrMiss", err)
	}

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want v", got)
	}

	got[0] = 'x'
	again, _ := c.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("Get() returned a slice aliasing the stored value")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := t.Context()
	c := NewMemoryCache(10)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get() after expiry error = %v, want ErrMiss", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired key removed", c.Len())
	}
}

func TestMemoryCache_ClearsWhenFull(t *testing.T) {
	ctx := t.Context()
	c := NewMemoryCache(2)

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "a", []byte("3"), 0)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want overwrite not to clear", c.Len())
	}

	_ = c.Set(ctx, "c", []byte("4"), 0)
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after clearing", c.Len())
	}
	if _, err := c.Get(ctx, "c"); err != nil {
		t.Errorf("Get(c) error = %v", err)
	}
}

var (
	_ Store = (*Cache)(nil)
	_ Store = (*MemoryCache)(nil)
)
