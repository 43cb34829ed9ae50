package bus

import "context"

// Reader is the readable side of a bus stream. Receive blocks until the
// next record is available, the context is canceled, or the stream fails.
// Records are delivered in publication order.
type Reader interface {
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Writer is the writable side of a bus stream. Send makes a single
// attempt; retry policy, if any, belongs to the caller.
type Writer interface {
	Send(ctx context.Context, record []byte) error
	Close() error
}

// Dialer opens read and write streams against a broker. The read and
// write addresses may name the same topic or different ones.
type Dialer interface {
	OpenReader(ctx context.Context, addr Addr) (Reader, error)
	OpenWriter(ctx context.Context, addr Addr) (Writer, error)
}
