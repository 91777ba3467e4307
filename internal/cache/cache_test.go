package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrLoadFillsOnce(t *testing.T) {
	c := NewTTL[string](8, time.Minute)
	var calls atomic.Int64

	loader := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "summary", nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrLoad(context.Background(), "dashboard", loader)
		if err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
		if got != "summary" {
			t.Fatalf("unexpected value %q", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected one loader call, got %d", n)
	}
}

func TestGetOrLoadExpires(t *testing.T) {
	c := NewTTL[int](8, 30*time.Millisecond)
	var calls atomic.Int64

	loader := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}

	if _, err := c.GetOrLoad(context.Background(), "k", loader); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	if _, err := c.GetOrLoad(context.Background(), "k", loader); err != nil {
		t.Fatalf("GetOrLoad after expiry: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", n)
	}
}

func TestGetOrLoadCollapsesConcurrentMisses(t *testing.T) {
	c := NewTTL[string](8, time.Minute)
	var calls atomic.Int64

	loader := func(ctx context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "slow", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.GetOrLoad(context.Background(), "k", loader)
			if err != nil || got != "slow" {
				t.Errorf("GetOrLoad: got %q err %v", got, err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected collapsed single load, got %d", n)
	}
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := NewTTL[string](8, time.Minute)
	var calls atomic.Int64

	loader := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("db offline")
		}
		return "recovered", nil
	}

	if _, err := c.GetOrLoad(context.Background(), "k", loader); err == nil {
		t.Fatal("expected first load to fail")
	}
	got, err := c.GetOrLoad(context.Background(), "k", loader)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if got != "recovered" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestInvalidate(t *testing.T) {
	c := NewTTL[int](8, time.Minute)
	var calls atomic.Int64

	loader := func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	first, _ := c.GetOrLoad(context.Background(), "k", loader)
	c.Invalidate("k")
	second, _ := c.GetOrLoad(context.Background(), "k", loader)

	if first != 1 || second != 2 {
		t.Fatalf("expected reload after invalidate, got %d then %d", first, second)
	}
	if c.Len() != 1 {
		t.Fatalf("expected one live entry, got %d", c.Len())
	}
}
