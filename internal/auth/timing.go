package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingDelay pads failed logins to a randomized minimum duration, so an unknown
// email and a wrong password are indistinguishable by response time.
type TimingDelay struct {
	base   time.Duration
	jitter time.Duration
	sleep  func(ctx context.Context, d time.Duration)
}

// NewTimingDelay pads to base plus up to jitter. A zero base disables padding.
func NewTimingDelay(base, jitter time.Duration) *TimingDelay {
	return &TimingDelay{base: base, jitter: jitter, sleep: sleepContext}
}

// WaitFrom blocks until at least the padded duration has passed since start,
// or ctx is done.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	if td == nil || td.base <= 0 {
		return
	}
	target := td.base + randomDuration(td.jitter)
	if elapsed := time.Since(start); elapsed < target {
		td.sleep(ctx, target-elapsed)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// randomDuration returns a crypto-random duration in [0, max).
func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(max))
}
