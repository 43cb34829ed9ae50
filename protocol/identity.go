package protocol

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Identity is a node's network address, used as its protocol identifier.
// Equality is by value.
type Identity string

// ErrIdentityUnresolvable indicates the local node's network address
// could not be determined. Fatal at engine construction.
var ErrIdentityUnresolvable = errors.New("local identity unresolvable")

// resolveProbeAddr is dialed (UDP, connectionless, no packets sent) only
// to learn which local address the kernel would route from.
const resolveProbeAddr = "8.8.8.8:53"

// ResolveIdentity deduces the local node's routable address.
func ResolveIdentity() (Identity, error) {
	conn, err := net.Dial("udp", resolveProbeAddr)
	if err != nil {
		return "", errors.Wrap(ErrIdentityUnresolvable, err.Error())
	}
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil || isUnroutable(host) {
		return "", ErrIdentityUnresolvable
	}
	return Identity(host), nil
}

func isUnroutable(addr string) bool {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if ip := net.ParseIP(addr); ip != nil && (ip.IsUnspecified() || ip.IsLoopback()) {
		return true // typically 0.0.0.0 or localhost
	} else if ip == nil && strings.ToLower(addr) == "localhost" {
		return true
	}
	return false
}
