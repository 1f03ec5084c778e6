// Package transport hides the point-to-point channel mechanics behind a
// small host/dial/send/receive surface.
//
// The production implementation runs over websockets; an in-memory
// implementation backs the tests so nothing needs a real socket. Both
// give the same guarantees: delivery order from one peer is preserved on
// its channel, and callbacks for a single connection are never invoked
// concurrently. No ordering is guaranteed across different connections.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/Seednode/quizbox/internal/protocol"
)

var (
	// ErrEndpointTaken means the join code collides with an endpoint
	// that is already open. Codes are short-lived and unique per running
	// game, so this is surfaced rather than silently retried.
	ErrEndpointTaken = errors.New("transport: endpoint name already taken")

	// ErrHostUnreachable means no endpoint exists for the code, or the
	// connection attempt timed out.
	ErrHostUnreachable = errors.New("transport: host unreachable")

	// ErrChannelClosed means the handle is no longer open for sending.
	ErrChannelClosed = errors.New("transport: channel closed")
)

// DialTimeout bounds a connection attempt to a host endpoint.
const DialTimeout = 10 * time.Second

// Transport opens named host endpoints and dials them by join code.
type Transport interface {
	// Host opens a listener addressable by the name derived from code.
	// Fails with ErrEndpointTaken on collision.
	Host(code string) (Endpoint, error)

	// Dial opens an outbound channel to the host endpoint for code.
	// Fails with ErrHostUnreachable when the endpoint does not exist or
	// the attempt times out.
	Dial(ctx context.Context, code string, teamID int) (Conn, error)
}

// Endpoint is an open host-side listener.
type Endpoint interface {
	// Code returns the join code this endpoint serves.
	Code() string

	// OnConn registers the callback for inbound connections. Register
	// it before clients can dial; the callback must install the
	// connection's handlers before returning.
	OnConn(func(Conn))

	// Close stops accepting and releases the endpoint name.
	Close() error
}

// Conn is one side of an open channel.
//
// Message delivery starts once OnMessage is registered; anything
// received before that waits. OnMessage and OnClose callbacks for the
// same Conn are invoked from a single goroutine, never concurrently.
type Conn interface {
	// ID identifies the connection for logging.
	ID() string

	// Send queues msg for asynchronous, best-effort delivery. Fails
	// with ErrChannelClosed once the handle is no longer open.
	Send(msg protocol.Message) error

	// OnMessage registers the delivery callback and starts delivery.
	OnMessage(func(protocol.Message))

	// OnClose registers the teardown callback, invoked exactly once
	// when the channel closes from either side.
	OnClose(func(error))

	// Close tears the channel down. Idempotent.
	Close() error
}
