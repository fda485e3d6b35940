package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storepilot/storepilot/internal/domain"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker("provisioner", 3, time.Minute)

	for i := 0; i < 2; i++ {
		b.Failure(errors.New("boom"))
		if b.State() != StateClosed {
			t.Fatalf("after %d failures: expected closed, got %s", i+1, b.State())
		}
	}
	b.Failure(errors.New("boom"))
	if b.State() != StateOpen {
		t.Fatalf("expected open after threshold, got %s", b.State())
	}

	err := b.Allow()
	if !errors.Is(err, domain.ErrDependencyUnavailable) {
		t.Fatalf("expected fail-fast ErrDependencyUnavailable, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("database", 3, time.Minute)
	b.Failure(errors.New("boom"))
	b.Failure(errors.New("boom"))
	b.Success()
	b.Failure(errors.New("boom"))
	b.Failure(errors.New("boom"))
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	b := NewBreaker("provisioner", 1, 30*time.Second)
	b.now = func() time.Time { return now }

	b.Failure(errors.New("boom"))
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	// Before the cooldown elapses, calls fail fast.
	if err := b.Allow(); err == nil {
		t.Fatal("expected fail-fast while open")
	}

	// After the cooldown, one trial call is admitted.
	now = now.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call to be admitted, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	// A concurrent second call during the probe is rejected.
	if err := b.Allow(); !errors.Is(err, domain.ErrDependencyUnavailable) {
		t.Fatalf("expected second probe rejected, got %v", err)
	}

	b.Success()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("expected calls allowed after recovery, got %v", err)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("provisioner", 1, 30*time.Second)
	b.now = func() time.Time { return now }

	b.Failure(errors.New("boom"))
	now = now.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call, got %v", err)
	}
	b.Failure(errors.New("still down"))
	if b.State() != StateOpen {
		t.Fatalf("expected re-open after failed probe, got %s", b.State())
	}
}

func TestMonitorAggregation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMonitor(time.Minute, logger)

	dbErr := error(nil)
	provErr := errors.New("cluster unreachable")

	m.Register(NewBreaker("database", 1, time.Minute), func(ctx context.Context) error { return dbErr })
	m.Register(NewBreaker("provisioner", 1, time.Minute), func(ctx context.Context) error { return provErr })

	m.probeAll(context.Background())

	if m.Healthy() {
		t.Fatal("expected degraded with one failing dependency")
	}

	snaps := m.Snapshot()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	byName := map[string]BreakerSnapshot{}
	for _, s := range snaps {
		byName[s.Name] = s
	}
	if !byName["database"].Healthy {
		t.Error("expected database healthy")
	}
	if byName["provisioner"].Healthy {
		t.Error("expected provisioner unhealthy")
	}
	if byName["provisioner"].LastError == "" {
		t.Error("expected provisioner snapshot to carry the probe error")
	}

	// Recovery: the provisioner comes back, the next allowed probe closes it.
	provErr = nil
	for _, d := range m.deps {
		d.breaker.mu.Lock()
		d.breaker.changedAt = time.Now().Add(-2 * time.Minute)
		d.breaker.mu.Unlock()
	}
	m.probeAll(context.Background())
	if !m.Healthy() {
		t.Fatal("expected healthy after recovery")
	}
}
