package protocol

import "testing"

func TestPeerListAddRemove(t *testing.T) {
	l := NewPeerList()

	l.Add("a")
	l.Add("b")
	l.Add("a") // duplicate
	if want, have := 2, l.Size(); want != have {
		t.Fatalf("size: want %d, have %d", want, have)
	}

	l.Remove("a")
	l.Remove("a") // already gone
	if want, have := 1, l.Size(); want != have {
		t.Fatalf("size after remove: want %d, have %d", want, have)
	}
	if s := l.Snapshot(); !s["b"] || s["a"] {
		t.Errorf("snapshot: want {b}, have %v", s.List())
	}
}

func TestPeerListNotifications(t *testing.T) {
	l := NewPeerList()

	type event struct{ before, after PeerSet }
	var events []event
	l.Observe(func(before, after PeerSet) {
		events = append(events, event{before, after})
	})

	l.Add("a")
	l.Add("a") // no mutation, no event
	l.Add("b")
	l.Remove("a")
	l.Remove("z") // no mutation, no event

	if want, have := 3, len(events); want != have {
		t.Fatalf("events: want %d, have %d", want, have)
	}
	if e := events[0]; len(e.before) != 0 || !e.after["a"] {
		t.Errorf("event 0: before %v, after %v", e.before.List(), e.after.List())
	}
	if e := events[1]; !e.before["a"] || !(e.after["a"] && e.after["b"]) {
		t.Errorf("event 1: before %v, after %v", e.before.List(), e.after.List())
	}
	if e := events[2]; !e.before["a"] || e.after["a"] || !e.after["b"] {
		t.Errorf("event 2: before %v, after %v", e.before.List(), e.after.List())
	}
}

func TestPeerListObserverOrder(t *testing.T) {
	l := NewPeerList()

	var order []int
	l.Observe(func(_, _ PeerSet) { order = append(order, 1) })
	l.Observe(func(_, _ PeerSet) { order = append(order, 2) })
	l.Observe(func(_, _ PeerSet) { order = append(order, 3) })

	l.Add("a")
	if want, have := []int{1, 2, 3}, order; len(want) != len(have) || have[0] != 1 || have[1] != 2 || have[2] != 3 {
		t.Errorf("want %v, have %v", want, have)
	}
}

func TestPeerListUnobserve(t *testing.T) {
	l := NewPeerList()

	var calls int
	token := l.Observe(func(_, _ PeerSet) { calls++ })

	l.Add("a")
	if err := l.Unobserve(token); err != nil {
		t.Fatal(err)
	}
	l.Add("b")
	if want, have := 1, calls; want != have {
		t.Errorf("calls: want %d, have %d", want, have)
	}

	if want, have := ErrNotObserving, l.Unobserve(token); want != have {
		t.Errorf("second unobserve: want %v, have %v", want, have)
	}
	if want, have := ErrNotObserving, l.Unobserve(Subscription("bogus")); want != have {
		t.Errorf("unknown token: want %v, have %v", want, have)
	}
}

func TestPeerListSnapshotIsolation(t *testing.T) {
	l := NewPeerList()
	l.Add("a")

	s := l.Snapshot()
	s["mutant"] = true
	if want, have := 1, l.Size(); want != have {
		t.Errorf("mutating a snapshot must not affect the list: want %d, have %d", want, have)
	}
}
