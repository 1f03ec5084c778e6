package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	holder := 1
	messages := []Message{
		TeamJoin{TeamID: 1},
		Buzz{TeamID: 0, SentAt: 1735689600123},
		Snapshot{
			Revision:       7,
			Phase:          "speed_round",
			QuestionIndex:  2,
			ActiveBuzzTeam: &holder,
			AnswerLocked:   false,
			HasQuestions:   true,
			TimerSeconds:   5,
			Teams: []TeamScore{
				{ID: 0, Name: "Red", Score: 20},
				{ID: 1, Name: "Blue", Score: 30},
			},
		},
	}

	for _, m := range messages {
		b, err := Encode(m)
		if err != nil {
			t.Fatalf("encode %s: %v", m.Kind(), err)
		}

		decoded, err := Decode(b)
		if err != nil {
			t.Fatalf("decode %s: %v", m.Kind(), err)
		}
		if decoded.Kind() != m.Kind() {
			t.Fatalf("kind = %s, want %s", decoded.Kind(), m.Kind())
		}
	}
}

func TestSnapshotRoundTripFields(t *testing.T) {
	holder := 0
	in := Snapshot{
		Revision:       42,
		Phase:          "turn_based",
		CurrentTeam:    1,
		ActiveBuzzTeam: &holder,
		TimerSeconds:   18,
		Teams:          []TeamScore{{ID: 0, Name: "Red", Score: 10}},
	}

	b, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, ok := out.(Snapshot)
	if !ok {
		t.Fatalf("decoded %T, want Snapshot", out)
	}
	if got.Revision != in.Revision || got.Phase != in.Phase || got.CurrentTeam != in.CurrentTeam {
		t.Fatalf("got %+v, want %+v", got, in)
	}
	if got.ActiveBuzzTeam == nil || *got.ActiveBuzzTeam != holder {
		t.Fatalf("active buzz team = %v, want %d", got.ActiveBuzzTeam, holder)
	}
	if got.TimerSeconds != 18 || len(got.Teams) != 1 || got.Teams[0].Score != 10 {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestEnvelopeShape(t *testing.T) {
	b, err := Encode(Buzz{TeamID: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != "buzz" {
		t.Fatalf("type tag = %q, want %q", env.Type, "buzz")
	}
	if len(env.Data) == 0 {
		t.Fatal("envelope carries no payload")
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"type":"celebrate","data":{}}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"buzz","data":"nope"}`,
		`{"type":"state","data":[1,2,3]}`,
	} {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Fatalf("decode %q succeeded, want error", raw)
		}
	}
}
