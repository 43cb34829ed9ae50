package protocol

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// ErrDiscoveryTimeout indicates discovery did not complete within the
// watchdog bound. Fatal: the enclosing process should abort.
var ErrDiscoveryTimeout = errors.New("discovery timed out")

// Watchdog is an independent timer that aborts discovery if it stalls.
// It is orthogonal to cooperative shutdown: expiry escalates to a fatal
// error rather than a graceful stop.
type Watchdog struct {
	Timeout time.Duration
	Logger  log.Logger
}

// Watch blocks until the timeout elapses (returning ErrDiscoveryTimeout)
// or the context is canceled, which signals normal completion (nil).
func (w Watchdog) Watch(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = log.NewNopLogger()
	}

	timer := time.NewTimer(w.Timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		level.Error(w.Logger).Log("msg", "watchdog time-out", "timeout", w.Timeout)
		return ErrDiscoveryTimeout
	case <-ctx.Done():
		return nil
	}
}
