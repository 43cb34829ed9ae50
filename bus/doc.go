// Package bus defines the seam between the discovery engine and the shared
// message bus. The engine only requires an ordered, readable/writable
// stream of opaque records; connection setup, authentication, and wire
// transport belong to the implementations (see zmqbus, mockbus).
package bus
