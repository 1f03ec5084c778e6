// Package protocol defines the wire contract between the quiz host and
// remote team buzzers.
//
// A closed set of type-tagged JSON messages travels over the transport:
//
//   - "team_join" (client → host): announces a team's presence
//   - "buzz"      (client → host): a team's claim to answer first
//   - "state"     (host → clients): authoritative game state snapshot
//
// Clients never mutate shared state directly. Every client action is a
// request the host arbitrates before it becomes part of the game state,
// which is what keeps host and clients from ever disagreeing about scores
// or turns.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a message type on the wire.
type Kind string

const (
	KindTeamJoin Kind = "team_join"
	KindBuzz     Kind = "buzz"
	KindState    Kind = "state"
)

// ErrUnknownKind is returned by Decode for unrecognized message kinds.
// Receivers drop such messages with a log entry; they never tear down
// the connection over one.
var ErrUnknownKind = errors.New("protocol: unknown message kind")

// Message is implemented by every wire message.
type Message interface {
	Kind() Kind
}

// TeamJoin announces a team's presence to the host. Identity is assumed
// to be established before this is sent; the host reacts by registering
// the sending connection for the team, replacing any prior one.
type TeamJoin struct {
	TeamID int `json:"team_id"`
}

func (TeamJoin) Kind() Kind { return KindTeamJoin }

// Buzz is a team's claim to answer the current speed-round question.
// SentAt is the client's wall clock in unix milliseconds. It is
// informational only: client clocks are not synchronized, so races are
// decided by host processing order, never by comparing timestamps.
type Buzz struct {
	TeamID int   `json:"team_id"`
	SentAt int64 `json:"sent_at,omitempty"`
}

func (Buzz) Kind() Kind { return KindBuzz }

// TeamScore is one team's public standing.
type TeamScore struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Snapshot is the full public projection of the host's game state.
// It never carries an in-flight answer selection's correctness or any
// credential material.
//
// Revision increases monotonically with every state-affecting transition
// on the host, so a client that already applied revision N+1 can discard
// a late-arriving revision N.
type Snapshot struct {
	Revision       uint64      `json:"revision"`
	Phase          string      `json:"phase"`
	QuestionIndex  int         `json:"question_index"`
	CurrentTeam    int         `json:"current_team"`
	ActiveBuzzTeam *int        `json:"active_buzz_team"`
	AnswerLocked   bool        `json:"answer_locked"`
	HasQuestions   bool        `json:"has_questions"`
	TimerSeconds   int         `json:"timer_seconds"`
	Teams          []TeamScore `json:"teams"`
}

func (Snapshot) Kind() Kind { return KindState }

// envelope is the outer wire shape: {"type": "...", "data": {...}}.
type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode serializes a message with its type tag.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Kind(), err)
	}

	return json.Marshal(envelope{Type: m.Kind(), Data: data})
}

// Decode parses a wire message back into its concrete type.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("protocol: malformed envelope: %w", err)
	}

	switch env.Type {
	case KindTeamJoin:
		var m TeamJoin
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("protocol: malformed %s payload: %w", env.Type, err)
		}
		return m, nil
	case KindBuzz:
		var m Buzz
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("protocol: malformed %s payload: %w", env.Type, err)
		}
		return m, nil
	case KindState:
		var m Snapshot
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("protocol: malformed %s payload: %w", env.Type, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}
