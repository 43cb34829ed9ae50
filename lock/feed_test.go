package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFeedGetSet(t *testing.T) {
	f := NewFeed()
	if want, have := StateInit, f.Get(); want != have {
		t.Fatalf("initial state: want %v, have %v", want, have)
	}

	f.Set(StateLeader)
	if want, have := StateLeader, f.Get(); want != have {
		t.Errorf("want %v, have %v", want, have)
	}
}

func TestFeedWatchNotifiesOncePerChange(t *testing.T) {
	f := NewFeed()
	c := f.Watch()

	f.Set(StateFollower)
	f.Set(StateFollower) // unchanged, no notification

	select {
	case s := <-c:
		if want, have := StateFollower, s; want != have {
			t.Errorf("want %v, have %v", want, have)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	select {
	case s := <-c:
		t.Errorf("unexpected second notification: %v", s)
	default:
	}
}

func TestFeedWatchCoalesces(t *testing.T) {
	f := NewFeed()
	c := f.Watch()

	// Nobody draining: a laggy watcher sees only the latest.
	f.Set(StateFollower)
	f.Set(StateLeader)

	if want, have := StateLeader, <-c; want != have {
		t.Errorf("want %v, have %v", want, have)
	}
}

func TestMonitorLogsTransitionsOnce(t *testing.T) {
	f := NewFeed()

	var (
		mtx    sync.Mutex
		logged []string
	)
	m := Monitor{
		Feed:     f,
		Interval: time.Millisecond,
		Logger: loggerFunc(func(keyvals ...interface{}) error {
			mtx.Lock()
			defer mtx.Unlock()
			for i := 0; i+1 < len(keyvals); i += 2 {
				if keyvals[i] == "state" {
					logged = append(logged, keyvals[i+1].(State).String())
				}
			}
			return nil
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // observe StateInit
	f.Set(StateFollower)
	time.Sleep(20 * time.Millisecond)
	f.Set(StateLeader)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	mtx.Lock()
	defer mtx.Unlock()
	want := []string{"initializing", "follower", "leader"}
	if len(logged) != len(want) {
		t.Fatalf("want %v, have %v", want, logged)
	}
	for i := range want {
		if want[i] != logged[i] {
			t.Fatalf("want %v, have %v", want, logged)
		}
	}
}

type loggerFunc func(keyvals ...interface{}) error

func (f loggerFunc) Log(keyvals ...interface{}) error { return f(keyvals...) }
