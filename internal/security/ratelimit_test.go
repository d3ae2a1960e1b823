package security

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterStore_BurstThenDeny(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !s.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
	if s.Allow("10.0.0.1") {
		t.Error("request beyond burst should be denied")
	}
}

func TestLimiterStore_PerClientIsolation(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if s.Allow("10.0.0.1") {
		t.Error("first client should be exhausted")
	}
	if !s.Allow("10.0.0.2") {
		t.Error("second client must have its own bucket")
	}
}

func TestLimiterStore_EmptyIP(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("") {
		t.Error("empty IP should fall into a shared bucket, not be rejected outright")
	}
	if s.Allow("  ") {
		t.Error("whitespace IP shares the empty bucket and should now be exhausted")
	}
}
