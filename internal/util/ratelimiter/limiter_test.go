package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		delays   []time.Duration // delays before each Allow() call
		want     []bool          // expected Allow() results
	}{
		{
			name:     "first call always allowed",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0},
			want:     []bool{true},
		},
		{
			name:     "second call immediately after is blocked",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0},
			want:     []bool{true, false},
		},
		{
			name:     "call after interval is allowed",
			interval: 50 * time.Millisecond,
			delays:   []time.Duration{0, 60 * time.Millisecond},
			want:     []bool{true, true},
		},
		{
			name:     "multiple rapid calls",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0, 0, 0},
			want:     []bool{true, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.interval)

			for i, delay := range tt.delays {
				if delay > 0 {
					time.Sleep(delay)
				}

				allowed, waitTime := limiter.Allow()
				if allowed != tt.want[i] {
					t.Errorf("call %d: Allow() = %v, want %v", i, allowed, tt.want[i])
				}

				if !allowed && waitTime <= 0 {
					t.Errorf("call %d: blocked but waitTime = %v, want > 0", i, waitTime)
				}

				if allowed && waitTime != 0 {
					t.Errorf("call %d: allowed but waitTime = %v, want 0", i, waitTime)
				}
			}
		})
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	interval := 100 * time.Millisecond
	limiter := New(interval)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	// Launch 100 goroutines simultaneously
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _ := limiter.Allow()
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Only one should be allowed
	if allowedCount != 1 {
		t.Errorf("concurrent calls: %d allowed, want exactly 1", allowedCount)
	}
}

func TestLimiter_WaitTimeAccuracy(t *testing.T) {
	interval := 100 * time.Millisecond
	limiter := New(interval)

	// First call
	limiter.Allow()

	// Immediate second call
	allowed, waitTime := limiter.Allow()
	if allowed {
		t.Fatal("second call should be blocked")
	}

	// Wait time should be close to interval
	if waitTime < 80*time.Millisecond || waitTime > 110*time.Millisecond {
		t.Errorf("waitTime = %v, want close to %v", waitTime, interval)
	}

	// Wait for half the interval
	time.Sleep(50 * time.Millisecond)

	// Check wait time again
	allowed, waitTime = limiter.Allow()
	if allowed {
		t.Fatal("call after 50ms should still be blocked")
	}

	// Wait time should be about half now
	if waitTime < 30*time.Millisecond || waitTime > 60*time.Millisecond {
		t.Errorf("waitTime after 50ms = %v, want ~50ms", waitTime)
	}
}

func TestKeyed_Allow(t *testing.T) {
	k := NewKeyed(time.Second)

	tests := []struct {
		key  string
		want bool
	}{
		{"/home/u/Downloads", true},
		{"/home/u/Downloads", false},
		{"/tmp", true},
		{"/tmp", false},
		{"/home/u/Downloads", false},
	}

	for i, tt := range tests {
		allowed, wait := k.Allow(tt.key)
		if allowed != tt.want {
			t.Errorf("call %d (%s): Allow() = %v, want %v", i, tt.key, allowed, tt.want)
		}
		if !allowed && wait <= 0 {
			t.Errorf("call %d: blocked but wait = %v", i, wait)
		}
	}

	if len(k.limiters) != 2 {
		t.Errorf("tracked keys = %d, want 2", len(k.limiters))
	}
}

func TestKeyed_DropsIdleKeys(t *testing.T) {
	interval := 50 * time.Millisecond
	k := NewKeyed(interval)

	for _, key := range []string{"/a", "/b", "/c"} {
		if ok, _ := k.Allow(key); !ok {
			t.Fatalf("first call for %s should be allowed", key)
		}
	}
	if len(k.limiters) != 3 {
		t.Fatalf("tracked keys = %d, want 3", len(k.limiters))
	}

	time.Sleep(2 * interval)

	if ok, _ := k.Allow("/d"); !ok {
		t.Fatal("first call for /d should be allowed")
	}
	if len(k.limiters) != 1 {
		t.Errorf("tracked keys = %d, want 1 after idle keys expire", len(k.limiters))
	}
	if _, ok := k.limiters["/d"]; !ok {
		t.Error("/d should still be tracked")
	}

	// A key still inside its interval survives the sweep
	if ok, _ := k.Allow("/e"); !ok {
		t.Fatal("first call for /e should be allowed")
	}
	if ok, _ := k.Allow("/d"); ok {
		t.Error("/d inside its interval should be blocked")
	}
}

func TestKeyed_Forget(t *testing.T) {
	k := NewKeyed(time.Hour)

	if ok, _ := k.Allow("a"); !ok {
		t.Fatal("first call should be allowed")
	}
	k.Forget("a")
	if ok, _ := k.Allow("a"); !ok {
		t.Error("call after Forget should be allowed")
	}
}

func TestKeyed_Concurrent(t *testing.T) {
	k := NewKeyed(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := map[string]int{}

	for i := 0; i < 100; i++ {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := k.Allow(key); ok {
				mu.Lock()
				allowed[key]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed["a"] != 1 || allowed["b"] != 1 {
		t.Errorf("allowed = %v, want exactly one per key", allowed)
	}
}
