package protocol

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/oklog/run"
	"github.com/pkg/errors"

	"github.com/mlinvill/distributedlock/bus"
)

// Defaults, applied by NewEngine for zero-valued config fields.
const (
	DefaultQuorumThreshold = 2
	DefaultQueueDepth      = 15
	DefaultWarmupDelay     = 30 * time.Second
	DefaultWatchdogTimeout = 600 * time.Second
	DefaultBrokerPort      = 5555
)

// Config describes how to construct a discovery engine.
type Config struct {
	// Broker is the bus broker endpoint, as host or host:port.
	//
	// Required.
	Broker string

	// ReadTopic is the topic we consume discovery traffic from.
	//
	// Required.
	ReadTopic string

	// WriteTopic is the topic we publish discovery traffic to. May equal
	// ReadTopic.
	//
	// Optional. If not provided, we'll take the read topic.
	WriteTopic string

	// Dialer opens the bus streams.
	//
	// Required.
	Dialer bus.Dialer

	// Identity is this node's protocol identifier.
	//
	// Optional. If not provided, we'll resolve the local routable address.
	Identity Identity

	// QuorumThreshold is the number of distinct peer replies required
	// before this node concludes discovery.
	QuorumThreshold int

	// WarmupDelay is the pause between opening the bus streams and the
	// first protocol activity, to let the subscription settle.
	WarmupDelay time.Duration

	// WatchdogTimeout bounds the whole discovery run.
	WatchdogTimeout time.Duration

	// QueueDepth is the capacity of each transport queue.
	QueueDepth int

	// BlockOnFull makes produce block until the outbound queue has space
	// (or the engine shuts down) instead of silently dropping. The drop
	// default matches the protocol's lossy retransmission design.
	BlockOnFull bool

	// Metrics is optional; if nil, an unregistered set is used.
	Metrics *Metrics

	// Discovery progress and diagnostics are sent via this logger.
	//
	// Optional, but recommended.
	Logger log.Logger
}

// Engine owns the discovery protocol state machine. Construct with
// NewEngine, then call Run; Peers and WhoAmI are valid at any point, and
// carry the final peer set once Run returns.
type Engine struct {
	readAddr    bus.Addr
	writeAddr   bus.Addr
	dialer      bus.Dialer
	id          Identity
	quorum      int
	warmup      time.Duration
	watchdog    time.Duration
	blockOnFull bool
	logger      log.Logger
	metrics     *Metrics

	// Owned exclusively by the protocol goroutine.
	peers   *PeerList
	inDisco bool
	ended   bool
	jitter  func() time.Duration

	// Shared with the transport workers.
	inq      chan []byte
	outq     chan []byte
	stopc    chan struct{}
	stopOnce sync.Once

	snapshot atomic.Value // PeerSet
}

// NewEngine validates the config, resolves the local identity, and
// returns a usable engine.
func NewEngine(config Config) (*Engine, error) {
	if config.Broker == "" {
		return nil, errors.New("must provide Broker")
	}
	if config.ReadTopic == "" {
		return nil, errors.New("must provide ReadTopic")
	}
	if config.Dialer == nil {
		return nil, errors.New("must provide Dialer")
	}
	if config.WriteTopic == "" {
		config.WriteTopic = config.ReadTopic
	}
	if config.QuorumThreshold == 0 {
		config.QuorumThreshold = DefaultQuorumThreshold
	}
	if config.WarmupDelay == 0 {
		config.WarmupDelay = DefaultWarmupDelay
	}
	if config.WatchdogTimeout == 0 {
		config.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if config.QueueDepth == 0 {
		config.QueueDepth = DefaultQueueDepth
	}
	if config.Metrics == nil {
		config.Metrics = newNopMetrics()
	}
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}

	readAddr, err := bus.ParseAddr(config.Broker+"/"+config.ReadTopic, DefaultBrokerPort)
	if err != nil {
		return nil, errors.Wrap(err, "parsing read stream address")
	}
	writeAddr, err := bus.ParseAddr(config.Broker+"/"+config.WriteTopic, DefaultBrokerPort)
	if err != nil {
		return nil, errors.Wrap(err, "parsing write stream address")
	}

	id := config.Identity
	if id == "" {
		if id, err = ResolveIdentity(); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		readAddr:    readAddr,
		writeAddr:   writeAddr,
		dialer:      config.Dialer,
		id:          id,
		quorum:      config.QuorumThreshold,
		warmup:      config.WarmupDelay,
		watchdog:    config.WatchdogTimeout,
		blockOnFull: config.BlockOnFull,
		logger:      config.Logger,
		metrics:     config.Metrics,
		peers:       NewPeerList(),
		jitter:      defaultJitter,
		inq:         make(chan []byte, config.QueueDepth),
		outq:        make(chan []byte, config.QueueDepth),
		stopc:       make(chan struct{}),
	}

	// Publish membership changes into an atomic snapshot, so accessors
	// are safe from any goroutine while the protocol goroutine retains
	// exclusive ownership of the PeerList itself.
	e.snapshot.Store(PeerSet{})
	e.peers.Observe(func(_, after PeerSet) {
		e.snapshot.Store(after)
		e.metrics.PeersDiscovered.Set(float64(len(after)))
	})

	return e, nil
}

// defaultJitter spaces poll iterations uniformly between 1 and 4 seconds,
// to avoid synchronized retransmission storms.
func defaultJitter() time.Duration {
	return time.Duration(1+rand.Intn(4)) * time.Second
}

// Run opens the bus streams, waits the warm-up delay, then drives the
// transport workers, the protocol loop, and the watchdog until discovery
// terminates by quorum, a received END, the watchdog, or context
// cancellation. The returned error is nil on normal completion.
func (e *Engine) Run(ctx context.Context) error {
	sctx, scancel := context.WithCancel(ctx)
	defer scancel()

	reader, err := e.dialer.OpenReader(sctx, e.readAddr)
	if err != nil {
		return errors.Wrapf(err, "opening read stream %s", e.readAddr)
	}
	defer reader.Close()

	writer, err := e.dialer.OpenWriter(sctx, e.writeAddr)
	if err != nil {
		return errors.Wrapf(err, "opening write stream %s", e.writeAddr)
	}
	defer writer.Close()

	// Let the bus subscription settle before any protocol traffic.
	level.Debug(e.logger).Log("msg", "warming up", "delay", e.warmup)
	select {
	case <-time.After(e.warmup):
	case <-sctx.Done():
		return sctx.Err()
	case <-e.stopc:
		return nil
	}

	var g run.Group
	{
		// Receive worker: bus -> inbound queue. Closing the reader is
		// what unblocks a pending Receive.
		g.Add(func() error {
			return e.receiveWorker(sctx, reader)
		}, func(error) {
			e.Shutdown()
			reader.Close()
		})
	}
	{
		// Send worker: outbound queue -> bus. It drains what is already
		// queued on shutdown, so a final END gets flushed.
		g.Add(func() error {
			return e.sendWorker(sctx, writer)
		}, func(error) {
			e.Shutdown()
		})
	}
	{
		// Protocol task: announce, then poll until terminated.
		g.Add(func() error {
			return e.discovery()
		}, func(error) {
			e.Shutdown()
		})
	}
	{
		// Watchdog: fatal if discovery stalls past its bound.
		wctx, wcancel := context.WithCancel(sctx)
		w := Watchdog{Timeout: e.watchdog, Logger: log.With(e.logger, "component", "watchdog")}
		g.Add(func() error {
			return w.Watch(wctx)
		}, func(error) {
			wcancel()
		})
	}
	return g.Run()
}

func (e *Engine) receiveWorker(ctx context.Context, r bus.Reader) error {
	for {
		select {
		case <-e.stopc:
			return nil
		default:
		}

		record, err := r.Receive(ctx)
		if err != nil {
			select {
			case <-e.stopc:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "receive worker")
		}

		select {
		case e.inq <- record:
		case <-e.stopc:
			return nil
		}
	}
}

func (e *Engine) sendWorker(ctx context.Context, w bus.Writer) error {
	for {
		select {
		case record := <-e.outq:
			if err := w.Send(ctx, record); err != nil {
				select {
				case <-e.stopc:
					return nil
				default:
				}
				return errors.Wrap(err, "send worker")
			}
		case <-e.stopc:
			e.flush(ctx, w)
			return nil
		}
	}
}

// flush makes a best-effort single attempt at whatever is still queued.
func (e *Engine) flush(ctx context.Context, w bus.Writer) {
	for {
		select {
		case record := <-e.outq:
			if err := w.Send(ctx, record); err != nil {
				level.Debug(e.logger).Log("op", "flush", "err", err)
				return
			}
		default:
			return
		}
	}
}

// discovery broadcasts our DISCO announcement, once per session, and runs
// the poll loop.
func (e *Engine) discovery() error {
	if !e.inDisco {
		e.inDisco = true
		level.Info(e.logger).Log("msg", "announcing", "source", e.id)
		e.produce(Message{Action: ActionDisco, Source: e.id})
	}
	return e.poll()
}

// poll waits for messages, registers peers, and ends when we have heard
// from enough of them.
func (e *Engine) poll() error {
	for !e.ended {
		select {
		case <-time.After(e.jitter()):
		case <-e.stopc:
			return nil
		}

		for _, record := range e.consume() {
			msg, err := ParseMessage(record)
			if err != nil {
				return err
			}

			if msg.Action == ActionEnd {
				level.Info(e.logger).Log("msg", "END received", "source", msg.Source)
				e.ended = true
				e.Shutdown()
				break
			}

			if msg.Source == e.id {
				level.Debug(e.logger).Log("msg", "skipping message from myself")
				continue
			}

			switch msg.Action {
			case ActionDisco:
				e.inDisco = true
				e.reply()
			case ActionReply:
				if msg.Reply == e.id {
					continue // never our own identity in the peer list
				}
				e.peers.Add(msg.Reply)
				level.Debug(e.logger).Log("msg", "peer registered", "peer", msg.Reply, "n", e.peers.Size())
				if e.peers.Size() >= e.quorum {
					level.Info(e.logger).Log("msg", "quorum reached", "n", e.peers.Size(), "threshold", e.quorum)
					e.end()
				}
			}
			if e.ended {
				break
			}
		}
	}
	return nil
}

// reply acknowledges a discovery request with our own identity.
func (e *Engine) reply() {
	e.produce(Message{Action: ActionReply, Source: e.id, Reply: e.id})
}

// end broadcasts END and marks the session finished locally. Remote peers
// stop only when they process the broadcast; concurrent ENDs from peers
// reaching quorum near-simultaneously are tolerated idempotently.
func (e *Engine) end() {
	e.produce(Message{Action: ActionEnd, Source: e.id})
	e.ended = true
	e.Shutdown()
}

// produce enqueues a message for the send worker. When the queue is at
// capacity the message is dropped (counted, not retried) unless
// BlockOnFull was set.
func (e *Engine) produce(msg Message) {
	record, err := msg.Encode()
	if err != nil {
		level.Error(e.logger).Log("op", "produce", "err", err)
		return
	}

	select {
	case <-e.stopc:
		return
	default:
	}

	if e.blockOnFull {
		select {
		case e.outq <- record:
			e.metrics.MessagesProduced.Inc()
		case <-e.stopc:
		}
		return
	}

	select {
	case e.outq <- record:
		e.metrics.MessagesProduced.Inc()
	default:
		e.metrics.MessagesDropped.Inc()
		level.Debug(e.logger).Log("op", "produce", "action", msg.Action, "msg", "outbound queue full, dropping")
	}
}

// consume drains whatever is currently buffered inbound, without
// blocking. More may arrive by the next poll iteration.
func (e *Engine) consume() [][]byte {
	var records [][]byte
	for {
		select {
		case record := <-e.inq:
			e.metrics.MessagesConsumed.Inc()
			records = append(records, record)
		default:
			return records
		}
	}
}

// Shutdown sets the shared termination signal observed by the protocol
// loop and both transport workers. Safe to call multiple times, from any
// goroutine.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopc)
	})
}

// WhoAmI returns the local identity used as this node's protocol
// identifier.
func (e *Engine) WhoAmI() Identity {
	return e.id
}

// Peers returns a snapshot of the discovered peer set. Safe from any
// goroutine; once Run has returned, it is the final set.
func (e *Engine) Peers() PeerSet {
	return e.snapshot.Load().(PeerSet).clone()
}

// State returns a JSON-serializable dump of engine state.
// Useful for debug.
func (e *Engine) State() map[string]interface{} {
	peers := e.Peers()
	return map[string]interface{}{
		"self":   e.id,
		"peers":  peers.List(),
		"n":      len(peers),
		"quorum": e.quorum,
		"read":   e.readAddr.String(),
		"write":  e.writeAddr.String(),
	}
}
