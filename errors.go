package unixtransport

import "errors"

// Errors returned by transport operations.
var (
	// ErrInvalidArgument is returned when a caller-supplied path, buffer
	// or descriptor batch is rejected before any system call is made.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTransportClosed is returned when the peer will never make
	// progress: a send reported zero bytes written, or connecting found
	// no listener. The transport must be torn down.
	ErrTransportClosed = errors.New("transport closed by peer")
	// ErrProtocolViolation is returned when ancillary data was truncated
	// or a control-message chain is malformed. Descriptor identity cannot
	// be reconstructed, so the connection cannot be recovered locally.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrInternalInvariant indicates a logic defect: the bytes written
	// across short-write retries did not add up to the frame size.
	ErrInternalInvariant = errors.New("internal invariant violation")
)

// ErrConnectionClosed is returned when operating on a closed transport.
var ErrConnectionClosed = errors.New("connection closed")
