// Package team is the remote buzzer side of a quiz session: a thin
// client that joins by code, mirrors host snapshots, and sends buzz
// requests. It never mutates game state itself; everything it displays
// is a read-only copy refreshed by host pushes.
package team

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/protocol"
	"github.com/Seednode/quizbox/internal/transport"
)

// Status is the connection state surfaced to the buzzer UI.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Client is one team's live connection to the host.
type Client struct {
	teamID int
	conn   transport.Conn
	log    zerolog.Logger

	mu      sync.Mutex
	status  Status
	snap    protocol.Snapshot
	applied bool
	onState func(protocol.Snapshot)
}

// Dial connects to the host for code, announces the team, and starts
// applying snapshots. The attempt is bounded by the transport's dial
// timeout; failures surface as transport.ErrHostUnreachable for the UI's
// connection-status indicator. Retrying is the operator's call, never
// automatic.
func Dial(ctx context.Context, tr transport.Transport, code string, teamID int, logger zerolog.Logger) (*Client, error) {
	c := &Client{
		teamID: teamID,
		log:    logger.With().Str("game", code).Int("team", teamID).Logger(),
		status: StatusConnecting,
	}

	conn, err := tr.Dial(ctx, code, teamID)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return nil, fmt.Errorf("team: join %q: %w", code, err)
	}
	c.conn = conn

	conn.OnClose(func(err error) {
		c.setStatus(StatusDisconnected)
		c.log.Info().Err(err).Msg("disconnected from host")
	})
	conn.OnMessage(c.handleMessage)

	if err := conn.Send(protocol.TeamJoin{TeamID: teamID}); err != nil {
		_ = conn.Close()
		c.setStatus(StatusDisconnected)
		return nil, fmt.Errorf("team: announce join: %w", err)
	}

	c.setStatus(StatusConnected)

	return c, nil
}

// Buzz claims the current speed-round question. The host arbitrates;
// whether the claim won shows up in the next snapshot.
func (c *Client) Buzz() error {
	return c.conn.Send(protocol.Buzz{
		TeamID: c.teamID,
		SentAt: time.Now().UnixMilli(),
	})
}

// State returns the last applied snapshot.
func (c *Client) State() protocol.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Status returns the connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// TeamID returns this client's team id.
func (c *Client) TeamID() int { return c.teamID }

// Active reports whether this team currently holds the buzzer.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.ActiveBuzzTeam != nil && *c.snap.ActiveBuzzTeam == c.teamID
}

// OnState registers a hook fired after each newly applied snapshot.
func (c *Client) OnState(fn func(protocol.Snapshot)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Close drops the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) handleMessage(msg protocol.Message) {
	snap, ok := msg.(protocol.Snapshot)
	if !ok {
		c.log.Warn().Str("kind", string(msg.Kind())).Msg("unexpected message from host")
		return
	}

	c.mu.Lock()
	// The first snapshot always applies; after that only strictly newer
	// revisions do, so stale or duplicate deliveries never roll state
	// back.
	if c.applied && snap.Revision <= c.snap.Revision {
		c.log.Debug().Uint64("have", c.snap.Revision).Uint64("got", snap.Revision).Msg("ignoring stale snapshot")
		c.mu.Unlock()
		return
	}
	c.snap = snap
	c.applied = true
	fn := c.onState
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}
