// Package protocol implements quorum peer discovery for a distributed
// lock cluster: the DISCO/REPLY/END handshake over a shared message bus,
// the observable peer list, and the bounded queues and transport workers
// that decouple the protocol loop from bus I/O.
package protocol
