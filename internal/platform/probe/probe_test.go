package probe_test

import (
	"context"
	"testing"

	"github.com/ncbedge/edgecore/internal/platform/probe"
)

func TestProbe_RejectsNonIPv4Immediately(t *testing.T) {
	p := &probe.Prober{Attempts: 5}

	cases := []string{"not-an-ip", "::1", "2001:db8::1"}
	for _, ip := range cases {
		ok, err := p.Probe(context.Background(), ip)
		if ok {
			t.Errorf("Probe(%q) = true, want false", ip)
		}
		if err == nil {
			t.Errorf("Probe(%q) expected an error for non-IPv4 input", ip)
		}
	}
}

func TestProbe_CancelledContextStopsImmediately(t *testing.T) {
	p := &probe.Prober{Attempts: 10}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := p.Probe(ctx, "203.0.113.1")
	if ok {
		t.Error("expected Probe to fail on an already-cancelled context")
	}
	if err == nil {
		t.Error("expected a cancellation error")
	}
}

func TestNew_DefaultsToTenAttempts(t *testing.T) {
	p := probe.New()
	if p.Attempts != 10 {
		t.Errorf("New().Attempts = %d, want 10", p.Attempts)
	}
}
