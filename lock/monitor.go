package lock

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// DefaultMonitorInterval matches the original operator console's cadence.
const DefaultMonitorInterval = 2 * time.Second

// Monitor polls a leader-state feed and logs each transition once. It is
// a consumer of the lock subsystem's output, not of the discovery engine.
type Monitor struct {
	Feed     *Feed
	Interval time.Duration
	Logger   log.Logger
}

// Run blocks until the context is canceled.
func (m Monitor) Run(ctx context.Context) error {
	if m.Interval == 0 {
		m.Interval = DefaultMonitorInterval
	}
	if m.Logger == nil {
		m.Logger = log.NewNopLogger()
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	last := State(-1)
	for {
		select {
		case <-ticker.C:
			if s := m.Feed.Get(); s != last {
				level.Info(m.Logger).Log("state", s)
				last = s
			}
		case <-ctx.Done():
			return nil
		}
	}
}
