// Package zmqbus implements the bus interfaces over ZeroMQ PUB/SUB
// sockets, brokered by an XPUB/XSUB proxy. Writers dial the proxy's XSUB
// side, readers its XPUB side; the topic travels as the first message
// frame and is matched by prefix subscription on the reader.
package zmqbus

import (
	"context"

	"github.com/go-zeromq/zmq4"
	"github.com/go-zeromq/zmq4/security/plain"
	"github.com/pkg/errors"

	"github.com/mlinvill/distributedlock/bus"
)

// Dialer opens ZeroMQ streams. The zero value dials without
// authentication; set Auth (and credentials) to use PLAIN security.
type Dialer struct {
	Auth     bool
	Username string
	Password string
}

var _ bus.Dialer = Dialer{}

func (d Dialer) options() []zmq4.Option {
	if !d.Auth {
		return nil
	}
	return []zmq4.Option{zmq4.WithSecurity(plain.Security(d.Username, d.Password))}
}

// OpenReader connects a SUB socket to the broker and subscribes to the
// addressed topic.
func (d Dialer) OpenReader(ctx context.Context, addr bus.Addr) (bus.Reader, error) {
	sub := zmq4.NewSub(ctx, d.options()...)
	if err := sub.Dial("tcp://" + addr.Broker()); err != nil {
		return nil, errors.Wrapf(err, "dialing broker %s", addr.Broker())
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, addr.Topic); err != nil {
		sub.Close()
		return nil, errors.Wrapf(err, "subscribing to %s", addr.Topic)
	}
	return &reader{sub: sub}, nil
}

// OpenWriter connects a PUB socket to the broker. Records are published
// under the addressed topic.
func (d Dialer) OpenWriter(ctx context.Context, addr bus.Addr) (bus.Writer, error) {
	pub := zmq4.NewPub(ctx, d.options()...)
	if err := pub.Dial("tcp://" + addr.Broker()); err != nil {
		return nil, errors.Wrapf(err, "dialing broker %s", addr.Broker())
	}
	return &writer{pub: pub, topic: addr.Topic}, nil
}

type reader struct {
	sub zmq4.Socket
}

func (r *reader) Receive(ctx context.Context) ([]byte, error) {
	msg, err := r.sub.Recv()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "receiving from bus")
	}
	// Topic frame first, payload second. A single-frame message is all
	// payload (topic matched by prefix).
	if len(msg.Frames) > 1 {
		return msg.Frames[1], nil
	}
	return msg.Bytes(), nil
}

func (r *reader) Close() error {
	return r.sub.Close()
}

type writer struct {
	pub   zmq4.Socket
	topic string
}

func (w *writer) Send(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.pub.Send(zmq4.NewMsgFrom([]byte(w.topic), record)); err != nil {
		return errors.Wrap(err, "sending to bus")
	}
	return nil
}

func (w *writer) Close() error {
	return w.pub.Close()
}
