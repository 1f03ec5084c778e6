package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Seednode/quizbox/internal/join"
	"github.com/Seednode/quizbox/internal/protocol"
)

// inboxSize bounds how many undelivered messages one side of a memory
// pair may hold.
const inboxSize = 64

// Memory is an in-process Transport. Host and clients share the same
// endpoint table, so a full host/client session can run inside one test
// without sockets.
type Memory struct {
	mu        sync.Mutex
	endpoints map[string]*memEndpoint
}

// NewMemory returns an empty in-memory transport.
func NewMemory() *Memory {
	return &Memory{
		endpoints: make(map[string]*memEndpoint),
	}
}

func (m *Memory) Host(code string) (Endpoint, error) {
	name := join.HostName(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.endpoints[name]; taken {
		return nil, ErrEndpointTaken
	}

	ep := &memEndpoint{
		transport: m,
		code:      code,
		name:      name,
	}
	m.endpoints[name] = ep

	return ep, nil
}

func (m *Memory) Dial(ctx context.Context, code string, teamID int) (Conn, error) {
	name := join.HostName(code)

	m.mu.Lock()
	ep := m.endpoints[name]
	m.mu.Unlock()

	if ep == nil {
		return nil, ErrHostUnreachable
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrHostUnreachable
	}

	done := make(chan struct{})
	once := &sync.Once{}
	clientSide := newMemConn(done, once)
	hostSide := newMemConn(done, once)
	clientSide.peer = hostSide
	hostSide.peer = clientSide

	ep.mu.Lock()
	onConn := ep.onConn
	closed := ep.closed
	ep.mu.Unlock()

	if closed || onConn == nil {
		return nil, ErrHostUnreachable
	}
	onConn(hostSide)

	return clientSide, nil
}

func (m *Memory) remove(name string) {
	m.mu.Lock()
	delete(m.endpoints, name)
	m.mu.Unlock()
}

type memEndpoint struct {
	transport *Memory
	code      string
	name      string

	mu     sync.Mutex
	onConn func(Conn)
	closed bool
}

func (e *memEndpoint) Code() string { return e.code }

func (e *memEndpoint) OnConn(fn func(Conn)) {
	e.mu.Lock()
	e.onConn = fn
	e.mu.Unlock()
}

func (e *memEndpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.transport.remove(e.name)
	return nil
}

// memConn is one side of a paired in-memory channel. Both sides share
// one done channel and the once guarding it: closing either side kills
// the pair, as tearing down a physical connection would.
type memConn struct {
	id    string
	peer  *memConn
	inbox chan protocol.Message
	done  chan struct{}
	once  *sync.Once

	mu      sync.Mutex
	msgFn   func(protocol.Message)
	closeFn func(error)
	started bool
}

func newMemConn(done chan struct{}, once *sync.Once) *memConn {
	return &memConn{
		id:    uuid.NewString(),
		inbox: make(chan protocol.Message, inboxSize),
		done:  done,
		once:  once,
	}
}

func (c *memConn) ID() string { return c.id }

func (c *memConn) Send(msg protocol.Message) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.peer.inbox <- msg:
		return nil
	case <-c.done:
		return ErrChannelClosed
	}
}

func (c *memConn) OnMessage(fn func(protocol.Message)) {
	c.mu.Lock()
	c.msgFn = fn
	start := !c.started
	c.started = true
	c.mu.Unlock()

	if start {
		go c.deliver()
	}
}

func (c *memConn) OnClose(fn func(error)) {
	c.mu.Lock()
	c.closeFn = fn
	c.mu.Unlock()
}

func (c *memConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// deliver pumps inbound messages to the registered callback from a
// single goroutine, preserving per-channel order. On close it drains
// what was already queued before firing the close callback once.
func (c *memConn) deliver() {
	for {
		select {
		case msg := <-c.inbox:
			c.handle(msg)
		case <-c.done:
			for {
				select {
				case msg := <-c.inbox:
					c.handle(msg)
				default:
					c.mu.Lock()
					fn := c.closeFn
					c.mu.Unlock()
					if fn != nil {
						fn(ErrChannelClosed)
					}
					return
				}
			}
		}
	}
}

func (c *memConn) handle(msg protocol.Message) {
	c.mu.Lock()
	fn := c.msgFn
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
