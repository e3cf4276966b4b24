package resources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"storyreel/internal/logging"
	"storyreel/internal/services"
)

// Request is the amount of host resources a single operation needs.
type Request struct {
	MemoryMB int
	CPUCores float64
}

// Limits configures admission.
type Limits struct {
	MaxConcurrent     int
	CPUCeilingPercent float64
	DiskFloorMB       int
	AcquireTimeout    time.Duration
	PollInterval      time.Duration
}

// Stats reports lease accounting.
type Stats struct {
	Active     int
	Peak       int
	ReservedMB int
	Acquired   int64
	Released   int64
}

// Lease is a scoped reservation. Release is idempotent.
type Lease struct {
	MemoryMB   int
	CPUCores   float64
	AcquiredAt time.Time

	once    sync.Once
	release func()
}

// Release returns the reservation to the manager.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(l.release)
}

// Manager is safe for concurrent use.
type Manager struct {
	limits Limits
	probe  Probe
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewManager constructs a Manager. A nil probe never limits headroom.
func NewManager(limits Limits, probe Probe, logger *slog.Logger) *Manager {
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = 1
	}
	if limits.PollInterval <= 0 {
		limits.PollInterval = 250 * time.Millisecond
	}
	if probe == nil {
		probe = Unlimited{}
	}
	return &Manager{
		limits: limits,
		probe:  probe,
		sem:    semaphore.NewWeighted(int64(limits.MaxConcurrent)),
		logger: logging.NewComponentLogger(logger, "resources"),
	}
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// Do runs fn while holding a lease for req. The lease is released on every
// exit path, including panics.
func (m *Manager) Do(ctx context.Context, req Request, fn func(context.Context) error) error {
	lease, err := m.Acquire(ctx, req)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(ctx)
}

// Acquire blocks for a slot, then polls headroom until it fits or the
// acquire timeout elapses.
func (m *Manager) Acquire(ctx context.Context, req Request) (*Lease, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	var deadline <-chan time.Time
	if m.limits.AcquireTimeout > 0 {
		timer := time.NewTimer(m.limits.AcquireTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(m.limits.PollInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, m.logger)
	waiting := false
	for {
		lease, reason, err := m.tryAdmit(ctx, req)
		if lease != nil {
			if waiting {
				logger.Debug("resource headroom recovered", logging.String(logging.FieldEventType, "lease_admitted_after_wait"))
			}
			return lease, nil
		}
		if !waiting {
			logger.Debug("waiting for resource headroom",
				logging.String("reason", reason),
				logging.Int("memory_mb", req.MemoryMB),
				logging.Float64("cpu_cores", req.CPUCores),
				logging.String(logging.FieldEventType, "lease_waiting"),
			)
			waiting = true
		}
		select {
		case <-ctx.Done():
			m.sem.Release(1)
			return nil, ctx.Err()
		case <-deadline:
			m.sem.Release(1)
			return nil, services.Wrap(services.ErrResourceExhausted, "", "acquire lease",
				fmt.Sprintf("headroom insufficient after %s: %s", m.limits.AcquireTimeout, reason), err)
		case <-ticker.C:
		}
	}
}

// tryAdmit checks headroom and records the lease under one lock so
// concurrent requests observe each other's reservations.
func (m *Manager) tryAdmit(ctx context.Context, req Request) (*Lease, string, error) {
	headroom, err := m.probe.Headroom(ctx)
	if err != nil {
		return nil, "probe failed", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if req.MemoryMB > 0 && headroom.AvailableMemoryMB >= 0 {
		if free := headroom.AvailableMemoryMB - m.stats.ReservedMB; free < req.MemoryMB {
			return nil, fmt.Sprintf("memory %dMB free, %dMB requested", free, req.MemoryMB), nil
		}
	}
	if m.limits.CPUCeilingPercent > 0 && headroom.CPUPercent >= m.limits.CPUCeilingPercent {
		return nil, fmt.Sprintf("cpu %.1f%% at or above ceiling %.1f%%", headroom.CPUPercent, m.limits.CPUCeilingPercent), nil
	}
	if m.limits.DiskFloorMB > 0 && headroom.FreeDiskMB >= 0 && headroom.FreeDiskMB < m.limits.DiskFloorMB {
		return nil, fmt.Sprintf("disk %dMB free, floor %dMB", headroom.FreeDiskMB, m.limits.DiskFloorMB), nil
	}

	m.stats.Active++
	m.stats.Acquired++
	m.stats.ReservedMB += req.MemoryMB
	if m.stats.Active > m.stats.Peak {
		m.stats.Peak = m.stats.Active
	}
	lease := &Lease{MemoryMB: req.MemoryMB, CPUCores: req.CPUCores, AcquiredAt: time.Now()}
	lease.release = func() { m.release(lease) }
	return lease, "", nil
}

func (m *Manager) release(lease *Lease) {
	m.mu.Lock()
	m.stats.Active--
	m.stats.Released++
	m.stats.ReservedMB -= lease.MemoryMB
	m.mu.Unlock()
	m.sem.Release(1)
}

// Stats returns a copy of the accounting counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
