package health

import (
	"context"
	"log/slog"
	"time"
)

// ProbeFunc checks one dependency's liveness.
type ProbeFunc func(ctx context.Context) error

type dependency struct {
	breaker *Breaker
	probe   ProbeFunc
}

// Monitor owns one breaker per external dependency and drives them from
// periodic probes. Components that call a dependency directly (the
// orchestrator's provisioner calls) share the same breaker, so in-band
// failures and probe failures feed the same circuit.
type Monitor struct {
	deps     []dependency
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewMonitor(interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger.With("component", "health_monitor"),
	}
}

// Register adds a dependency to monitor and returns its breaker.
func (m *Monitor) Register(breaker *Breaker, probe ProbeFunc) *Breaker {
	m.deps = append(m.deps, dependency{breaker: breaker, probe: probe})
	return breaker
}

// Run probes all dependencies on a ticker until the context is cancelled.
// The first round runs immediately so /health is meaningful at startup.
func (m *Monitor) Run(ctx context.Context) {
	m.probeAll(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	for _, d := range m.deps {
		if err := d.breaker.Allow(); err != nil {
			continue // circuit open, skip until cooldown elapses
		}
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := d.probe(probeCtx)
		cancel()
		if err != nil {
			d.breaker.Failure(err)
			m.logger.Warn("dependency probe failed",
				"dependency", d.breaker.name,
				"state", d.breaker.State().String(),
				"error", err,
			)
			continue
		}
		d.breaker.Success()
	}
}

// Healthy reports whether every dependency's circuit is closed.
func (m *Monitor) Healthy() bool {
	for _, d := range m.deps {
		if !d.breaker.Healthy() {
			return false
		}
	}
	return true
}

// Snapshot returns the per-dependency breaker views.
func (m *Monitor) Snapshot() []BreakerSnapshot {
	out := make([]BreakerSnapshot, 0, len(m.deps))
	for _, d := range m.deps {
		out = append(out, d.breaker.Snapshot())
	}
	return out
}
