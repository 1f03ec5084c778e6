package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/join"
	"github.com/Seednode/quizbox/internal/protocol"
)

// sendBuffer bounds queued outbound messages per connection. A client
// that cannot drain this many snapshots is dead or hopelessly behind,
// and gets disconnected rather than stalling the host.
const sendBuffer = 64

// AuthFunc checks a team's join handshake before the websocket upgrade.
type AuthFunc func(code string, teamID int, key string) bool

// WebsocketConfig configures a Websocket transport. The host process
// sets Auth and mounts Handle on its router; a client process sets
// BaseURL (and JoinKey) and dials.
type WebsocketConfig struct {
	// BaseURL is the dial target including any path prefix, e.g.
	// "ws://quiz.example:8080". Required for Dial.
	BaseURL string

	// JoinKey is the credential presented when dialing.
	JoinKey string

	// Auth gates inbound joins on the host side; nil admits everyone.
	Auth AuthFunc

	Logger zerolog.Logger
}

// Websocket is the production Transport, carrying messages over
// gorilla/websocket connections.
type Websocket struct {
	mu        sync.Mutex
	endpoints map[string]*wsEndpoint

	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	baseURL  string
	joinKey  string
	auth     AuthFunc
	log      zerolog.Logger
}

// NewWebsocket builds a Websocket transport.
func NewWebsocket(cfg WebsocketConfig) *Websocket {
	return &Websocket{
		endpoints: make(map[string]*wsEndpoint),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		dialer:  websocket.DefaultDialer,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		joinKey: cfg.JoinKey,
		auth:    cfg.Auth,
		log:     cfg.Logger,
	}
}

func (t *Websocket) Host(code string) (Endpoint, error) {
	name := join.HostName(code)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, taken := t.endpoints[name]; taken {
		return nil, ErrEndpointTaken
	}

	ep := &wsEndpoint{
		transport: t,
		code:      code,
		name:      name,
	}
	t.endpoints[name] = ep

	return ep, nil
}

func (t *Websocket) Dial(ctx context.Context, code string, teamID int) (Conn, error) {
	if t.baseURL == "" {
		return nil, fmt.Errorf("%w: transport has no dial target", ErrHostUnreachable)
	}

	target := fmt.Sprintf("%s/game/%s/ws?team=%d&key=%s",
		t.baseURL, url.PathEscape(code), teamID, url.QueryEscape(t.joinKey))

	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	ws, resp, err := t.dialer.DialContext(dialCtx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s", ErrHostUnreachable, resp.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrHostUnreachable, err)
	}

	return newWSConn(ws, t.log), nil
}

// Handle serves team websocket joins. Mount it on the host router at
// .../game/:code/ws.
func (t *Websocket) Handle(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("code")

	t.mu.Lock()
	ep := t.endpoints[join.HostName(code)]
	t.mu.Unlock()

	if ep == nil {
		http.Error(w, "no such game", http.StatusNotFound)
		return
	}

	teamID, err := strconv.Atoi(r.URL.Query().Get("team"))
	if err != nil {
		http.Error(w, "missing team id", http.StatusBadRequest)
		return
	}
	if t.auth != nil && !t.auth(code, teamID, r.URL.Query().Get("key")) {
		t.log.Warn().Str("code", code).Int("team", teamID).Msg("join rejected: bad credential")
		http.Error(w, "invalid credentials", http.StatusForbidden)
		return
	}

	ep.mu.Lock()
	onConn := ep.onConn
	closed := ep.closed
	ep.mu.Unlock()

	if closed || onConn == nil {
		http.Error(w, "game not accepting connections", http.StatusConflict)
		return
	}

	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.Warn().Err(err).Str("code", code).Msg("websocket upgrade failed")
		return
	}

	conn := newWSConn(ws, t.log)
	t.log.Debug().Str("code", code).Int("team", teamID).Str("conn", conn.ID()).Msg("team channel opened")
	onConn(conn)
}

func (t *Websocket) remove(name string) {
	t.mu.Lock()
	delete(t.endpoints, name)
	t.mu.Unlock()
}

type wsEndpoint struct {
	transport *Websocket
	code      string
	name      string

	mu     sync.Mutex
	onConn func(Conn)
	closed bool
}

func (e *wsEndpoint) Code() string { return e.code }

func (e *wsEndpoint) OnConn(fn func(Conn)) {
	e.mu.Lock()
	e.onConn = fn
	e.mu.Unlock()
}

func (e *wsEndpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.transport.remove(e.name)
	return nil
}

// wsConn wraps one websocket with the read/write pump pair. The write
// pump starts immediately; the read pump starts when OnMessage is
// registered, so no message is dispatched before a handler exists.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  zerolog.Logger

	mu      sync.Mutex
	msgFn   func(protocol.Message)
	closeFn func(error)
	started bool
}

func newWSConn(ws *websocket.Conn, logger zerolog.Logger) *wsConn {
	c := &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  logger,
	}
	go c.writePump()
	return c
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrChannelClosed
	default:
		// Slow consumer: drop the connection instead of blocking the
		// sender.
		c.log.Warn().Str("conn", c.id).Msg("send buffer full, closing connection")
		_ = c.Close()
		return ErrChannelClosed
	}
}

func (c *wsConn) OnMessage(fn func(protocol.Message)) {
	c.mu.Lock()
	c.msgFn = fn
	start := !c.started
	c.started = true
	c.mu.Unlock()

	if start {
		go c.readPump()
	}
}

func (c *wsConn) OnClose(fn func(error)) {
	c.mu.Lock()
	c.closeFn = fn
	c.mu.Unlock()
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
	return nil
}

func (c *wsConn) readPump() {
	defer func() {
		_ = c.Close()
		c.mu.Lock()
		fn := c.closeFn
		c.mu.Unlock()
		if fn != nil {
			fn(ErrChannelClosed)
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// Malformed or unknown messages are dropped, never fatal
			// to the connection.
			c.log.Warn().Err(err).Str("conn", c.id).Msg("dropping undecodable message")
			continue
		}

		c.mu.Lock()
		fn := c.msgFn
		c.mu.Unlock()
		if fn != nil {
			fn(msg)
		}
	}
}

func (c *wsConn) writePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
