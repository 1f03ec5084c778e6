package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/protocol"
)

// fakeConn records sends and closes for registry assertions.
type fakeConn struct {
	id      string
	sent    []protocol.Message
	sendErr error
	closed  bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(m protocol.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeConn) OnMessage(func(protocol.Message)) {}

func (f *fakeConn) OnClose(func(error)) {}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestRegisterReplacesStaleConnection(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	old := &fakeConn{id: "a"}
	replacement := &fakeConn{id: "b"}

	r.Register(1, old)
	r.Register(1, replacement)

	if !old.closed {
		t.Fatal("replaced connection was not closed")
	}
	if replacement.closed {
		t.Fatal("replacement connection was closed")
	}
	if got := r.Len(); got != 1 {
		t.Fatalf("len = %d, want 1", got)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	r.Register(0, &fakeConn{id: "a"})
	r.Unregister(0)
	r.Unregister(0)
	r.Unregister(5)

	if r.Has(0) {
		t.Fatal("team still registered after unregister")
	}
}

func TestReleaseOnlyRemovesMatchingConn(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	old := &fakeConn{id: "a"}
	replacement := &fakeConn{id: "b"}

	r.Register(1, old)
	r.Register(1, replacement)

	// The stale connection's close event arrives after the reconnect.
	r.Release(1, old)
	if !r.Has(1) {
		t.Fatal("stale release knocked out the replacement")
	}

	r.Release(1, replacement)
	if r.Has(1) {
		t.Fatal("matching release did not remove the mapping")
	}
}

func TestConnectedSorted(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	r.Register(1, &fakeConn{id: "b"})
	r.Register(0, &fakeConn{id: "a"})

	if got := r.Connected(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("connected = %v, want [0 1]", got)
	}
}

func TestBroadcastExcept(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	r.Register(0, a)
	r.Register(1, b)

	r.BroadcastExcept(protocol.Snapshot{Revision: 1}, 0)

	if len(a.sent) != 0 {
		t.Fatalf("excluded team received %d messages", len(a.sent))
	}
	if len(b.sent) != 1 {
		t.Fatalf("team 1 received %d messages, want 1", len(b.sent))
	}

	r.BroadcastExcept(protocol.Snapshot{Revision: 2}, -1)
	if len(a.sent) != 1 || len(b.sent) != 2 {
		t.Fatalf("broadcast to all delivered %d/%d, want 1/2", len(a.sent), len(b.sent))
	}
}

func TestBroadcastContinuesPastFailure(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	bad := &fakeConn{id: "a", sendErr: errors.New("gone")}
	good := &fakeConn{id: "b"}
	r.Register(0, bad)
	r.Register(1, good)

	r.BroadcastExcept(protocol.Snapshot{Revision: 1}, -1)

	if len(good.sent) != 1 {
		t.Fatalf("healthy team received %d messages, want 1", len(good.sent))
	}
}

func TestCloseClosesAll(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	r.Register(0, a)
	r.Register(1, b)

	r.Close()

	if !a.closed || !b.closed {
		t.Fatal("close left connections open")
	}
	if got := r.Len(); got != 0 {
		t.Fatalf("len = %d after close, want 0", got)
	}
}
