package host_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/host"
	"github.com/Seednode/quizbox/internal/protocol"
	"github.com/Seednode/quizbox/internal/quiz"
	"github.com/Seednode/quizbox/internal/team"
	"github.com/Seednode/quizbox/internal/transport"
)

var testQuestions = quiz.QuestionSet{
	SpeedRound: []quiz.Question{
		{Text: "q0", Options: []string{"a", "b"}, CorrectIndex: 1},
		{Text: "q1", Options: []string{"a", "b"}, CorrectIndex: 0},
	},
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newTestSession(t *testing.T, tr transport.Transport, fc clockwork.Clock) *host.Session {
	t.Helper()

	s, err := host.NewSession(host.Config{
		Transport: tr,
		Code:      "AB12",
		TeamNames: []string{"Red", "Blue"},
		Questions: testQuestions,
		Clock:     fc,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

func joinTeam(t *testing.T, tr transport.Transport, teamID int) *team.Client {
	t.Helper()

	c, err := team.Dial(context.Background(), tr, "AB12", teamID, zerolog.Nop())
	if err != nil {
		t.Fatalf("team %d dial: %v", teamID, err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func scoreOf(t *testing.T, snap protocol.Snapshot, teamID int) int {
	t.Helper()
	for _, team := range snap.Teams {
		if team.ID == teamID {
			return team.Score
		}
	}
	t.Fatalf("snapshot has no team %d", teamID)
	return 0
}

func TestSessionEndToEnd(t *testing.T) {
	tr := transport.NewMemory()
	fc := clockwork.NewFakeClock()
	s := newTestSession(t, tr, fc)

	red := joinTeam(t, tr, 0)
	blue := joinTeam(t, tr, 1)

	waitFor(t, func() bool { return len(s.Connected()) == 2 })

	if err := s.Engine().Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Both clients learn the game started.
	waitFor(t, func() bool { return red.State().Phase == string(quiz.PhaseSpeedRound) })
	waitFor(t, func() bool { return blue.State().Phase == string(quiz.PhaseSpeedRound) })

	if err := blue.Buzz(); err != nil {
		t.Fatalf("buzz: %v", err)
	}

	// The win propagates to both sides, loser included.
	waitFor(t, blue.Active)
	waitFor(t, func() bool {
		snap := red.State()
		return snap.ActiveBuzzTeam != nil && *snap.ActiveBuzzTeam == 1
	})

	// A late buzz from the other team changes nothing.
	if err := red.Buzz(); err != nil {
		t.Fatalf("buzz: %v", err)
	}
	if got := s.Engine().ActiveBuzzTeam(); got != 1 {
		t.Fatalf("active buzz team = %d, want 1", got)
	}

	correct, err := s.Engine().SelectAnswer(1, testQuestions.SpeedRound[0].CorrectIndex)
	if err != nil {
		t.Fatalf("select answer: %v", err)
	}
	if !correct {
		t.Fatal("expected a correct grade")
	}

	waitFor(t, func() bool {
		snap := red.State()
		return scoreOf(t, snap, 1) == quiz.PointsPerCorrect && snap.ActiveBuzzTeam == nil
	})

	if err := s.Engine().NextQuestion(); err != nil {
		t.Fatalf("next question: %v", err)
	}
	waitFor(t, func() bool { return blue.State().QuestionIndex == 1 })
}

func TestAutoSkipReachesClients(t *testing.T) {
	tr := transport.NewMemory()
	fc := clockwork.NewFakeClock()
	s := newTestSession(t, tr, fc)

	red := joinTeam(t, tr, 0)

	waitFor(t, func() bool { return len(s.Connected()) == 1 })
	if err := s.Engine().Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := red.Buzz(); err != nil {
		t.Fatalf("buzz: %v", err)
	}
	waitFor(t, red.Active)

	fc.Advance(quiz.DefaultBuzzWindow)

	waitFor(t, func() bool { return !red.Active() })
	if got := scoreOf(t, red.State(), 0); got != 0 {
		t.Fatalf("auto-skip changed score to %d, want 0", got)
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	tr := transport.NewMemory()
	s := newTestSession(t, tr, clockwork.NewFakeClock())

	first := joinTeam(t, tr, 0)
	waitFor(t, func() bool { return len(s.Connected()) == 1 })

	// Same team joins again, as after a page reload. The stale handle is
	// closed and the replacement takes over.
	second := joinTeam(t, tr, 0)

	waitFor(t, func() bool { return first.Status() == team.StatusDisconnected })
	waitFor(t, func() bool { return second.Status() == team.StatusConnected })

	if got := len(s.Connected()); got != 1 {
		t.Fatalf("connected teams = %d, want 1", got)
	}

	// The replacement still receives broadcasts.
	if err := s.Engine().Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return second.State().Phase == string(quiz.PhaseSpeedRound) })
}

func TestJoinForUnknownTeamIgnored(t *testing.T) {
	tr := transport.NewMemory()
	s := newTestSession(t, tr, clockwork.NewFakeClock())

	c, err := team.Dial(context.Background(), tr, "AB12", 9, zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	joinTeam(t, tr, 0)
	waitFor(t, func() bool { return len(s.Connected()) == 1 })

	for _, id := range s.Connected() {
		if id == 9 {
			t.Fatal("out-of-range team was registered")
		}
	}
}

func TestPinnedCodeCollision(t *testing.T) {
	tr := transport.NewMemory()
	newTestSession(t, tr, clockwork.NewFakeClock())

	_, err := host.NewSession(host.Config{
		Transport: tr,
		Code:      "AB12",
		Logger:    zerolog.Nop(),
	})
	if !errors.Is(err, transport.ErrEndpointTaken) {
		t.Fatalf("second session = %v, want ErrEndpointTaken", err)
	}
}

func TestGeneratedCode(t *testing.T) {
	tr := transport.NewMemory()

	s, err := host.NewSession(host.Config{
		Transport: tr,
		Questions: testQuestions,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	if len(s.Code()) != 4 {
		t.Fatalf("generated code %q has wrong length", s.Code())
	}
}

func TestCloseDisconnectsTeams(t *testing.T) {
	tr := transport.NewMemory()
	s := newTestSession(t, tr, clockwork.NewFakeClock())

	red := joinTeam(t, tr, 0)
	waitFor(t, func() bool { return len(s.Connected()) == 1 })

	s.Close()

	waitFor(t, func() bool { return red.Status() == team.StatusDisconnected })

	if _, err := team.Dial(context.Background(), tr, "AB12", 1, zerolog.Nop()); !errors.Is(err, transport.ErrHostUnreachable) {
		t.Fatalf("dial after close = %v, want ErrHostUnreachable", err)
	}
}
