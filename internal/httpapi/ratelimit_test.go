package httpapi

import (
	"testing"
	"time"
)

func TestLimiterAllowsUpToMax(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("k") {
		t.Fatal("4th request should be denied")
	}
}

func TestLimiterPerKeyIsolation(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	if !l.Allow("a") {
		t.Fatal("first request for key a should be allowed")
	}
	if !l.Allow("b") {
		t.Fatal("first request for key b should be allowed regardless of key a's usage")
	}
	if l.Allow("a") {
		t.Fatal("second request for key a should be denied")
	}
}

func TestLimiterWindowExpiry(t *testing.T) {
	l := NewLimiter(1, 10*time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second immediate request should be denied")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestLimiterSweepDropsEmptyKeys(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	l.hits["stale"] = nil
	l.sweepLocked()
	if _, ok := l.hits["stale"]; ok {
		t.Fatal("expected sweepLocked to drop a key with no retained hits")
	}
}
