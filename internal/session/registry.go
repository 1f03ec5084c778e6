// Package session holds the host's per-game connection bookkeeping: the
// registry mapping team ids to live connections.
package session

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/protocol"
	"github.com/Seednode/quizbox/internal/transport"
)

// Registry maps team ids to their active connection, independent of
// transport details. Owned by the host; the underlying transport owns
// the physical connections.
type Registry struct {
	mu    sync.Mutex
	conns map[int]transport.Conn
	log   zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[int]transport.Conn),
		log:   logger,
	}
}

// Register maps teamID to conn. A prior handle for the same team is
// closed before being replaced, so a team reconnecting after a dropped
// connection never leaks its old one.
func (r *Registry) Register(teamID int, conn transport.Conn) {
	r.mu.Lock()
	old, replaced := r.conns[teamID]
	r.conns[teamID] = conn
	r.mu.Unlock()

	if replaced && old != conn {
		r.log.Info().Int("team", teamID).Str("conn", old.ID()).Msg("replacing stale team connection")
		_ = old.Close()
	}

	r.log.Info().Int("team", teamID).Str("conn", conn.ID()).Msg("team registered")
}

// Unregister removes the mapping for teamID. Removing an absent team is
// a no-op.
func (r *Registry) Unregister(teamID int) {
	r.mu.Lock()
	_, ok := r.conns[teamID]
	delete(r.conns, teamID)
	r.mu.Unlock()

	if ok {
		r.log.Info().Int("team", teamID).Msg("team unregistered")
	}
}

// Release removes the mapping for teamID only if it still points at
// conn. A close event from a connection that was already replaced by a
// reconnect must not knock out the replacement.
func (r *Registry) Release(teamID int, conn transport.Conn) {
	r.mu.Lock()
	current, ok := r.conns[teamID]
	if ok && current == conn {
		delete(r.conns, teamID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		r.log.Info().Int("team", teamID).Str("conn", conn.ID()).Msg("team connection released")
	}
}

// Connected returns a sorted snapshot of currently mapped team ids.
func (r *Registry) Connected() []int {
	r.mu.Lock()
	out := make([]int, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	r.mu.Unlock()

	sort.Ints(out)
	return out
}

// Has reports whether teamID currently has a registered connection.
func (r *Registry) Has(teamID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[teamID]
	return ok
}

// Len returns the number of registered teams.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// BroadcastExcept sends msg to every registered team except excludeID
// (pass a negative id to reach everyone). Individual send failures are
// logged and skipped; delivery to the remaining teams continues.
func (r *Registry) BroadcastExcept(msg protocol.Message, excludeID int) {
	r.mu.Lock()
	targets := make(map[int]transport.Conn, len(r.conns))
	for id, conn := range r.conns {
		if id == excludeID {
			continue
		}
		targets[id] = conn
	}
	r.mu.Unlock()

	for id, conn := range targets {
		if err := conn.Send(msg); err != nil {
			r.log.Warn().Err(err).Int("team", id).Str("conn", conn.ID()).Msg("broadcast send failed")
		}
	}
}

// Close closes every registered connection and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int]transport.Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
