// Package host runs the authoritative side of a quiz session: one
// process that owns the game state, accepts team connections, arbitrates
// buzz races, and pushes state snapshots back out.
package host

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/join"
	"github.com/Seednode/quizbox/internal/protocol"
	"github.com/Seednode/quizbox/internal/quiz"
	"github.com/Seednode/quizbox/internal/session"
	"github.com/Seednode/quizbox/internal/transport"
)

// codeAttempts bounds how often a colliding join code is rerolled.
const codeAttempts = 16

// Config configures a Session.
type Config struct {
	Transport transport.Transport

	// Code pins the join code; empty generates one.
	Code string

	TeamNames []string
	Questions quiz.QuestionSet

	BuzzWindow time.Duration
	TurnWindow time.Duration

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// event is one unit of inbound work for the session loop.
type event struct {
	conn   transport.Conn
	msg    protocol.Message
	closed bool
	err    error
}

// Session is one running game. All game-state mutation funnels through
// a single event loop, so "first buzz wins" is decided purely by the
// order messages reach that loop.
type Session struct {
	code     string
	log      zerolog.Logger
	engine   *quiz.Engine
	registry *session.Registry
	endpoint transport.Endpoint
	clock    clockwork.Clock

	events chan event
	dirty  chan struct{}
	done   chan struct{}
	once   sync.Once

	// teamFor is touched only by the event loop.
	teamFor map[transport.Conn]int

	mu         sync.Mutex
	lastActive time.Time
}

// NewSession opens a host endpoint and starts the session loops. When no
// code is pinned, colliding codes are rerolled; a pinned code surfaces
// transport.ErrEndpointTaken instead.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if len(cfg.TeamNames) == 0 {
		cfg.TeamNames = []string{"Team 1", "Team 2"}
	}

	code := cfg.Code
	var endpoint transport.Endpoint
	var err error

	if code != "" {
		endpoint, err = cfg.Transport.Host(code)
		if err != nil {
			return nil, fmt.Errorf("host: open endpoint %q: %w", join.HostName(code), err)
		}
	} else {
		for attempt := 0; attempt < codeAttempts; attempt++ {
			code = join.NewCode()
			endpoint, err = cfg.Transport.Host(code)
			if err == nil {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("host: no free join code after %d attempts: %w", codeAttempts, err)
		}
	}

	logger := cfg.Logger.With().Str("game", code).Logger()

	s := &Session{
		code:       code,
		log:        logger,
		registry:   session.NewRegistry(logger),
		endpoint:   endpoint,
		clock:      cfg.Clock,
		events:     make(chan event, 128),
		dirty:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		teamFor:    make(map[transport.Conn]int),
		lastActive: cfg.Clock.Now(),
	}

	s.engine = quiz.New(quiz.Config{
		TeamNames:  cfg.TeamNames,
		Questions:  cfg.Questions,
		BuzzWindow: cfg.BuzzWindow,
		TurnWindow: cfg.TurnWindow,
		Clock:      cfg.Clock,
		Logger:     logger,
		OnChange:   s.markDirty,
	})

	endpoint.OnConn(s.handleConn)

	go s.loop()
	go s.broadcastLoop()

	s.log.Info().Str("endpoint", join.HostName(code)).Msg("session opened")

	return s, nil
}

// Code returns the session's join code.
func (s *Session) Code() string { return s.code }

// Engine exposes the arbitration engine for the moderator surface.
func (s *Session) Engine() *quiz.Engine { return s.engine }

// Connected returns the currently registered team ids, sorted.
func (s *Session) Connected() []int { return s.registry.Connected() }

// Snapshot returns the current public game state.
func (s *Session) Snapshot() protocol.Snapshot { return s.engine.Snapshot() }

// LastActive returns when the session last saw traffic or moderator
// activity, for idle reaping.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session active.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = s.clock.Now()
	s.mu.Unlock()
}

// Close tears the session down: endpoint released, all team connections
// closed. Idempotent.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.endpoint.Close()
		s.registry.Close()
		s.log.Info().Msg("session closed")
	})
}

// handleConn wires a fresh team connection into the event loop. Handlers
// are installed before this returns, per the transport contract.
func (s *Session) handleConn(conn transport.Conn) {
	conn.OnClose(func(err error) {
		s.enqueue(event{conn: conn, closed: true, err: err})
	})
	conn.OnMessage(func(msg protocol.Message) {
		s.enqueue(event{conn: conn, msg: msg})
	})
}

func (s *Session) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// loop is the host's single message loop. It alone reads events, so the
// processing order here is the tiebreak for near-simultaneous buzzes; no
// client clock comparison is ever involved.
func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.Touch()

			if ev.closed {
				s.handleClose(ev.conn)
				continue
			}

			switch msg := ev.msg.(type) {
			case protocol.TeamJoin:
				s.handleJoin(ev.conn, msg)
			case protocol.Buzz:
				s.handleBuzz(msg)
			default:
				// Clients have no business sending anything else;
				// drop it without tearing the connection down.
				s.log.Warn().Str("kind", string(ev.msg.Kind())).Str("conn", ev.conn.ID()).Msg("unexpected message from client")
			}
		}
	}
}

func (s *Session) handleJoin(conn transport.Conn, msg protocol.TeamJoin) {
	if msg.TeamID < 0 || msg.TeamID >= len(s.engine.Teams()) {
		s.log.Warn().Int("team", msg.TeamID).Str("conn", conn.ID()).Msg("join for unknown team id ignored")
		return
	}

	s.teamFor[conn] = msg.TeamID
	s.registry.Register(msg.TeamID, conn)

	// Sync the newcomer immediately instead of waiting for the next
	// state transition.
	if err := conn.Send(s.engine.Snapshot()); err != nil {
		s.log.Warn().Err(err).Int("team", msg.TeamID).Msg("initial snapshot send failed")
	}
}

func (s *Session) handleBuzz(msg protocol.Buzz) {
	if !s.registry.Has(msg.TeamID) {
		// Tolerated but worth noticing: either a stale connection or
		// a client that skipped the join handshake.
		s.log.Warn().Int("team", msg.TeamID).Msg("buzz from unregistered team")
	}

	s.engine.Buzz(msg.TeamID)
}

func (s *Session) handleClose(conn transport.Conn) {
	teamID, known := s.teamFor[conn]
	delete(s.teamFor, conn)

	if known {
		s.registry.Release(teamID, conn)
	}
}

// markDirty flags that the game state changed. The flag has capacity
// one: bursts of transitions within a tick coalesce into a single
// broadcast, and because the broadcaster snapshots current state when it
// wakes, the final state of a burst is never skipped.
func (s *Session) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// broadcastLoop fans the latest snapshot out to every connected team
// after each state-affecting transition.
func (s *Session) broadcastLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
			s.registry.BroadcastExcept(s.engine.Snapshot(), quiz.NoTeam)
		}
	}
}
