package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration // upper bound of the jitter added to BaseDelay
}

// TimingDelay pads failed authentication responses to a common floor so
// unknown emails, wrong passwords and locked accounts cannot be told apart
// by response time.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

func (td *TimingDelay) target() time.Duration {
	d := td.config.BaseDelay
	if td.config.RandomDelay > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.RandomDelay)))
		if err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// WaitFrom sleeps until at least base+jitter has passed since start.
// It returns early when ctx is done.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	remaining := td.target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
