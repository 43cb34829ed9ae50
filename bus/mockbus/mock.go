// Package mockbus provides an in-memory broker for tests. It behaves like
// a real pub/sub topic: every record written to a topic is delivered, in
// order, to every reader of that topic — including readers on the node
// that wrote it.
package mockbus

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/mlinvill/distributedlock/bus"
)

// ErrClosed is returned from operations on a closed stream.
var ErrClosed = errors.New("stream closed")

// Broker is an in-memory collection of topics.
type Broker struct {
	mtx    sync.Mutex
	topics map[string][]*reader
}

var _ bus.Dialer = (*Broker)(nil)

// NewBroker returns an empty in-memory broker.
func NewBroker() *Broker {
	return &Broker{
		topics: map[string][]*reader{},
	}
}

// OpenReader subscribes a new reader to the addressed topic.
func (b *Broker) OpenReader(ctx context.Context, addr bus.Addr) (bus.Reader, error) {
	r := &reader{
		broker: b,
		topic:  addr.Topic,
		recvc:  make(chan []byte, 64),
	}
	b.mtx.Lock()
	b.topics[addr.Topic] = append(b.topics[addr.Topic], r)
	b.mtx.Unlock()
	return r, nil
}

// OpenWriter returns a writer publishing to the addressed topic.
func (b *Broker) OpenWriter(ctx context.Context, addr bus.Addr) (bus.Writer, error) {
	return &writer{broker: b, topic: addr.Topic}, nil
}

// Publish delivers a record to every current reader of the topic. It's
// exported so tests can inject traffic without opening a writer.
func (b *Broker) Publish(topic string, record []byte) {
	b.mtx.Lock()
	readers := append([]*reader(nil), b.topics[topic]...)
	b.mtx.Unlock()

	for _, r := range readers {
		r.deliver(record)
	}
}

func (b *Broker) unsubscribe(topic string, target *reader) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	readers := b.topics[topic]
	for i, r := range readers {
		if r == target {
			b.topics[topic] = append(readers[:i], readers[i+1:]...)
			return
		}
	}
}

type reader struct {
	broker *Broker
	topic  string
	recvc  chan []byte

	mtx    sync.Mutex
	closed bool
}

func (r *reader) deliver(record []byte) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.closed {
		return
	}
	select {
	case r.recvc <- record:
	default: // reader too slow, drop
	}
}

func (r *reader) Receive(ctx context.Context) ([]byte, error) {
	select {
	case record, ok := <-r.recvc:
		if !ok {
			return nil, ErrClosed
		}
		return record, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *reader) Close() error {
	r.broker.unsubscribe(r.topic, r)
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.recvc)
	return nil
}

type writer struct {
	broker *Broker
	topic  string

	mtx    sync.Mutex
	closed bool
}

func (w *writer) Send(ctx context.Context, record []byte) error {
	w.mtx.Lock()
	closed := w.closed
	w.mtx.Unlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.broker.Publish(w.topic, record)
	return nil
}

func (w *writer) Close() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	w.closed = true
	return nil
}
