package bus

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoBroker indicates a stream address with no broker host.
var ErrNoBroker = errors.New("no broker supplied")

// ErrNoTopic indicates a stream address with no topic component.
var ErrNoTopic = errors.New("no topic supplied")

// Addr identifies one stream on the bus: a broker endpoint plus a topic.
type Addr struct {
	Scheme string
	Host   string
	Port   int
	Topic  string
}

// Broker returns the host:port of the broker endpoint.
func (a Addr) Broker() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// String reassembles the canonical <scheme>://<broker>/<topic> form.
func (a Addr) String() string {
	return fmt.Sprintf("%s://%s/%s", a.Scheme, a.Broker(), a.Topic)
}

// ParseAddr liberally accepts a variety of stream address formats, along
// with a default port, and returns a well-defined Addr.
//
//	"zmq://host:1234/topic", 80 => zmq, host, 1234, topic
//	"host:1234/topic", 80       => zmq, host, 1234, topic
//	"host/topic", 80            => zmq, host, 80,   topic
//
func ParseAddr(addr string, defaultPort int) (Addr, error) {
	if !strings.Contains(addr, "://") {
		addr = "zmq://" + addr
	}

	u, err := url.Parse(strings.ToLower(addr))
	if err != nil {
		return Addr{}, errors.Wrapf(err, "parsing stream address %s", addr)
	}

	if u.Host == "" {
		return Addr{}, ErrNoBroker
	}

	host, port := u.Host, defaultPort
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host = h
		port, err = strconv.Atoi(p)
		if err != nil {
			return Addr{}, errors.Wrapf(err, "parsing broker port in %s", addr)
		}
	}

	topic := strings.Trim(u.Path, "/")
	if topic == "" {
		return Addr{}, ErrNoTopic
	}

	return Addr{Scheme: u.Scheme, Host: host, Port: port, Topic: topic}, nil
}
