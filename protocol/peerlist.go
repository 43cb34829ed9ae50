package protocol

import (
	"sort"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

// ErrNotObserving indicates an attempt to remove an observer that was
// never registered (or was already removed).
var ErrNotObserving = errors.New("not observing")

// PeerSet is a set of peer identities.
type PeerSet map[Identity]bool

// List returns the identities in sorted order, for stable output.
func (s PeerSet) List() []Identity {
	list := make([]Identity, 0, len(s))
	for peer := range s {
		list = append(list, peer)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func (s PeerSet) clone() PeerSet {
	c := make(PeerSet, len(s))
	for peer := range s {
		c[peer] = true
	}
	return c
}

// Observer is invoked synchronously on every peer set mutation, with
// full-set copies taken before and after the change.
type Observer func(before, after PeerSet)

// Subscription identifies a registered observer, for later removal.
type Subscription string

type subscriber struct {
	token Subscription
	fn    Observer
}

// PeerList holds the current set of discovered peers and triggers events
// on membership change. Observers run in registration order.
//
// PeerList is not internally synchronized: it must be mutated only from
// the engine's protocol goroutine. Cross-goroutine reads go through the
// snapshot the engine publishes from one of its own observers.
type PeerList struct {
	state       PeerSet
	subscribers []subscriber
}

// NewPeerList returns an empty peer list.
func NewPeerList() *PeerList {
	return &PeerList{state: PeerSet{}}
}

// Add inserts a peer. Idempotent; observers fire only when membership
// actually changes.
func (l *PeerList) Add(peer Identity) {
	if l.state[peer] {
		return
	}
	before := l.state.clone()
	l.state[peer] = true
	l.notify(before, l.state.clone())
}

// Remove deletes a peer. Idempotent, with the same notification contract
// as Add.
func (l *PeerList) Remove(peer Identity) {
	if !l.state[peer] {
		return
	}
	before := l.state.clone()
	delete(l.state, peer)
	l.notify(before, l.state.clone())
}

// Observe registers fn to be called on membership changes, and returns a
// token for Unobserve.
func (l *PeerList) Observe(fn Observer) Subscription {
	token := Subscription(uuid.New())
	l.subscribers = append(l.subscribers, subscriber{token: token, fn: fn})
	return token
}

// Unobserve removes a previously registered observer.
func (l *PeerList) Unobserve(token Subscription) error {
	for i, s := range l.subscribers {
		if s.token == token {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return nil
		}
	}
	return ErrNotObserving
}

// Size returns the number of known peers.
func (l *PeerList) Size() int {
	return len(l.state)
}

// Snapshot returns a copy of the current peer set.
func (l *PeerList) Snapshot() PeerSet {
	return l.state.clone()
}

func (l *PeerList) notify(before, after PeerSet) {
	for _, s := range l.subscribers {
		s.fn(before, after)
	}
}
