package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
)

func TestWatchdogExpires(t *testing.T) {
	w := Watchdog{Timeout: 10 * time.Millisecond, Logger: log.NewLogfmtLogger(testWriter{t})}
	if want, have := ErrDiscoveryTimeout, w.Watch(context.Background()); want != have {
		t.Errorf("want %v, have %v", want, have)
	}
}

func TestWatchdogCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := Watchdog{Timeout: time.Hour}
	if err := w.Watch(ctx); err != nil {
		t.Errorf("want nil, have %v", err)
	}
}
