package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/stylebook/internal/services"
)

// StalePendingLister is satisfied by services.AppointmentService.
type StalePendingLister interface {
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]services.StalePendingAppointment, error)
}

// StalePendingMonitor periodically warns about PENDING appointments nobody confirmed
type StalePendingMonitor struct {
	lister    StalePendingLister
	logger    *slog.Logger
	interval  time.Duration
	olderThan time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewStalePendingMonitor creates a new stale pending monitor
func NewStalePendingMonitor(
	lister StalePendingLister,
	logger *slog.Logger,
	interval time.Duration,
	olderThan time.Duration,
) *StalePendingMonitor {
	return &StalePendingMonitor{
		lister:    lister,
		logger:    logger,
		interval:  interval,
		olderThan: olderThan,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the check immediately and then every interval until Stop or ctx is done.
func (m *StalePendingMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-m.stopCh:
			m.logger.Info("stale pending monitor stopped")
			return
		case <-ctx.Done():
			m.logger.Info("stale pending monitor context cancelled")
			return
		}
	}
}

// check logs one summary line plus one line per stale appointment, and returns how many it found.
func (m *StalePendingMonitor) check(ctx context.Context) int {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stale, err := m.lister.ListStalePending(checkCtx, m.olderThan)
	if err != nil {
		m.logger.Error("failed to list stale pending appointments", slog.Any("error", err))
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	var oldest int64
	for _, a := range stale {
		if a.MinutesPending > oldest {
			oldest = a.MinutesPending
		}
		m.logger.Warn("appointment still pending",
			slog.String("appointment_id", a.ID),
			slog.String("service", a.ServiceName),
			slog.Time("appointment_at", a.AppointmentAt),
			slog.Int64("minutes_pending", a.MinutesPending))
	}
	m.logger.Warn("stale pending appointments need confirmation",
		slog.Int("count", len(stale)),
		slog.Int64("oldest_minutes", oldest),
		slog.Duration("older_than", m.olderThan))
	return len(stale)
}

// Stop signals the monitor to stop. It is safe to call more than once.
func (m *StalePendingMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
