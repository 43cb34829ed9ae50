// Package lock defines the contract between peer discovery and the
// replicated lock/leader-election subsystem that consumes it. The lock
// state machine itself is owned by an external library; this package
// carries the membership handoff and the leader-state feed its consumers
// watch.
package lock

import (
	"context"

	"github.com/mlinvill/distributedlock/protocol"
)

// State is a node's position in the lock subsystem.
type State int

const (
	StateInit State = iota
	StateFollower
	StateLeader
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "initializing"
	case StateFollower:
		return "follower"
	case StateLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Group is the replication group handed to the lock subsystem once
// discovery concludes: the local identity plus the discovered peer set.
// Discovery is per-node, so two nodes' groups need not list identical
// peers; the lock subsystem must tolerate asymmetric views.
type Group struct {
	Self  protocol.Identity
	Peers []protocol.Identity
}

// NewGroup captures the engine's current view as a replication group.
func NewGroup(e *protocol.Engine) Group {
	return Group{
		Self:  e.WhoAmI(),
		Peers: e.Peers().List(),
	}
}

// Locker is implemented by the external lock/consensus subsystem. It
// receives the replication group and reports leader-state transitions
// through the feed. It does not participate in discovery.
type Locker interface {
	Run(ctx context.Context, group Group, feed *Feed) error
}
