package lock

import (
	"sync"
	"sync/atomic"
)

// Feed is a typed leader-state cell shared between the lock subsystem
// (writer) and its consumers (readers). Reads always see the most recent
// Set; watchers additionally receive change notifications, latest-wins
// if they lag.
type Feed struct {
	state int32 // atomic State

	mtx      sync.Mutex
	watchers []chan State
}

// NewFeed returns a feed in StateInit.
func NewFeed() *Feed {
	return &Feed{state: int32(StateInit)}
}

// Get returns the current state.
func (f *Feed) Get() State {
	return State(atomic.LoadInt32(&f.state))
}

// Set publishes a new state. No-op (no notification) if unchanged.
func (f *Feed) Set(s State) {
	if State(atomic.SwapInt32(&f.state, int32(s))) == s {
		return
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()
	for _, c := range f.watchers {
		select {
		case c <- s:
		default:
			// Watcher lags: replace the stale notification.
			select {
			case <-c:
			default:
			}
			c <- s
		}
	}
}

// Watch registers a change notification channel. The channel carries the
// state as of each transition, coalesced to the latest when the watcher
// falls behind.
func (f *Feed) Watch() <-chan State {
	c := make(chan State, 1)
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.watchers = append(f.watchers, c)
	return c
}
