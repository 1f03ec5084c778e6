package quiz

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/protocol"
)

const (
	// PointsPerCorrect is awarded for a correctly answered question in
	// either round.
	PointsPerCorrect = 10

	// DefaultBuzzWindow is how long a buzzed-in team has before it is
	// skipped and the question reopens for the others.
	DefaultBuzzWindow = 8 * time.Second

	// DefaultTurnWindow is the per-question countdown in the turn-based
	// round. Expiry locks the answer with no score change.
	DefaultTurnWindow = 30 * time.Second
)

var (
	ErrWrongPhase   = errors.New("quiz: not valid in this phase")
	ErrNoActiveBuzz = errors.New("quiz: no team holds the buzzer")
	ErrNotYourTurn  = errors.New("quiz: not this team's turn to answer")
	ErrAnswerLocked = errors.New("quiz: answer already locked")
	ErrUnknownTeam  = errors.New("quiz: unknown team id")
)

// Config configures an Engine.
type Config struct {
	// TeamNames sets the fixed team roster, ids 0..N-1 in order.
	TeamNames []string

	Questions QuestionSet

	// BuzzWindow and TurnWindow default to DefaultBuzzWindow and
	// DefaultTurnWindow when zero.
	BuzzWindow time.Duration
	TurnWindow time.Duration

	// Clock defaults to the real clock. Tests inject a fake one.
	Clock clockwork.Clock

	Logger zerolog.Logger

	// OnChange fires after every state-affecting transition, with the
	// engine lock held. It must not call back into the engine; the
	// intended use is marking a broadcast flag.
	OnChange func()
}

// Engine owns the authoritative game state and arbitrates buzz races.
//
// All mutation goes through its methods; the host's single message loop
// calls them in delivery order, which is exactly the order that decides
// who buzzed first. The mutex only guards against the timer goroutine.
//
// Core invariant: at most one team holds the buzzer at any time during
// the speed round. A buzz that arrives while any team holds it is
// ignored outright, never queued.
type Engine struct {
	mu    sync.Mutex
	clock clockwork.Clock
	log   zerolog.Logger

	buzzWindow time.Duration
	turnWindow time.Duration
	onChange   func()

	phase         Phase
	teams         []Team
	questions     QuestionSet
	questionIndex int
	currentTeam   int
	activeBuzz    int
	selected      int
	locked        bool
	revision      uint64

	timerGen    uint64
	timerCancel chan struct{}
	timer       clockwork.Timer
	deadline    time.Time
}

// New builds an Engine in the setup phase.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.BuzzWindow <= 0 {
		cfg.BuzzWindow = DefaultBuzzWindow
	}
	if cfg.TurnWindow <= 0 {
		cfg.TurnWindow = DefaultTurnWindow
	}

	teams := make([]Team, len(cfg.TeamNames))
	for i, name := range cfg.TeamNames {
		teams[i] = Team{ID: i, Name: name}
	}

	return &Engine{
		clock:      cfg.Clock,
		log:        cfg.Logger,
		buzzWindow: cfg.BuzzWindow,
		turnWindow: cfg.TurnWindow,
		onChange:   cfg.OnChange,
		phase:      PhaseSetup,
		teams:      teams,
		questions:  cfg.Questions,
		activeBuzz: NoTeam,
		selected:   NoAnswer,
	}
}

// Start leaves setup and begins play. Non-empty names rename the teams
// first. Scores reset, and the question list picks the opening phase:
// the turn-based round when it has questions, otherwise straight to the
// speed round.
func (e *Engine) Start(names []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseSetup {
		return ErrWrongPhase
	}

	for i := range e.teams {
		if i < len(names) && names[i] != "" {
			e.teams[i].Name = names[i]
		}
		e.teams[i].Score = 0
	}

	e.questionIndex = 0
	e.currentTeam = 0
	e.clearQuestionLocked()

	switch {
	case len(e.questions.TurnBased) > 0:
		e.phase = PhaseTurnBased
		e.armLocked(e.turnWindow, e.turnExpired)
	case len(e.questions.SpeedRound) > 0:
		e.phase = PhaseSpeedRound
	default:
		e.phase = PhaseResults
	}

	e.log.Info().Str("phase", string(e.phase)).Msg("game started")
	e.notifyLocked()

	return nil
}

// Buzz handles a team's claim to answer the current speed-round
// question. The first claim processed wins; every later one before the
// question reopens is a no-op. Reports whether the claim was honored.
func (e *Engine) Buzz(teamID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseSpeedRound || !e.hasQuestionsLocked() {
		e.log.Debug().Int("team", teamID).Msg("buzz ignored: no open question")
		return false
	}
	if e.activeBuzz != NoTeam || e.locked {
		e.log.Debug().Int("team", teamID).Int("holder", e.activeBuzz).Msg("buzz ignored: race already won")
		return false
	}
	if teamID < 0 || teamID >= len(e.teams) {
		e.log.Warn().Int("team", teamID).Msg("buzz from unknown team id dropped")
		return false
	}

	e.activeBuzz = teamID
	e.armLocked(e.buzzWindow, e.buzzExpired)
	e.log.Info().Int("team", teamID).Int("question", e.questionIndex).Msg("buzz accepted")
	e.notifyLocked()

	return true
}

// SelectAnswer grades an answer for teamID, awarding PointsPerCorrect
// when it matches the current question.
//
// In the turn-based round only the team whose turn it is may answer, and
// any selection locks the question. In the speed round only the team
// holding the buzzer may answer; a correct answer locks the question
// while an incorrect one reopens it, unlocked and unpenalized, so the
// other team can buzz in.
func (e *Engine) SelectAnswer(teamID, answerIndex int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if teamID < 0 || teamID >= len(e.teams) {
		return false, ErrUnknownTeam
	}
	if e.locked {
		return false, ErrAnswerLocked
	}

	switch e.phase {
	case PhaseTurnBased:
		if teamID != e.currentTeam {
			return false, ErrNotYourTurn
		}
	case PhaseSpeedRound:
		if e.activeBuzz == NoTeam {
			return false, ErrNoActiveBuzz
		}
		if teamID != e.activeBuzz {
			return false, ErrNotYourTurn
		}
	default:
		return false, ErrWrongPhase
	}

	q, ok := e.currentQuestionLocked()
	if !ok {
		return false, ErrWrongPhase
	}

	e.disarmLocked()
	correct := answerIndex == q.CorrectIndex

	if correct {
		e.teams[teamID].Score += PointsPerCorrect
		e.selected = answerIndex
		e.locked = true
		e.activeBuzz = NoTeam
	} else if e.phase == PhaseSpeedRound {
		// Wrong answer reopens the race for the other team.
		e.activeBuzz = NoTeam
		e.selected = NoAnswer
	} else {
		e.selected = answerIndex
		e.locked = true
	}

	e.log.Info().
		Int("team", teamID).
		Int("answer", answerIndex).
		Bool("correct", correct).
		Int("score", e.teams[teamID].Score).
		Msg("answer graded")
	e.notifyLocked()

	return correct, nil
}

// Skip drops the team currently holding the buzzer without grading or
// penalty, reopening the question. Valid only while a team holds the
// buzzer; it takes the same transition as the auto-skip timeout and
// cancels the pending timer.
func (e *Engine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseSpeedRound {
		return ErrWrongPhase
	}
	if e.activeBuzz == NoTeam || e.locked {
		return ErrNoActiveBuzz
	}

	e.log.Info().Int("team", e.activeBuzz).Msg("team skipped by moderator")
	e.reopenLocked()

	return nil
}

// NextQuestion advances to the next question, or to the next phase when
// the current round's list is exhausted. In the turn-based round the
// turn alternates strictly 0,1,0,1,... regardless of who answered.
func (e *Engine) NextQuestion() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case PhaseTurnBased:
		e.clearQuestionLocked()
		if e.questionIndex+1 < len(e.questions.TurnBased) {
			e.questionIndex++
			e.currentTeam = (e.currentTeam + 1) % len(e.teams)
			e.armLocked(e.turnWindow, e.turnExpired)
		} else if len(e.questions.SpeedRound) > 0 {
			e.phase = PhaseSpeedRound
			e.questionIndex = 0
		} else {
			e.phase = PhaseResults
		}
	case PhaseSpeedRound:
		e.clearQuestionLocked()
		if e.questionIndex+1 < len(e.questions.SpeedRound) {
			e.questionIndex++
		} else {
			e.phase = PhaseResults
		}
	default:
		return ErrWrongPhase
	}

	e.log.Debug().Str("phase", string(e.phase)).Int("question", e.questionIndex).Msg("advanced")
	e.notifyLocked()

	return nil
}

// Finish ends the speed round early and shows results.
func (e *Engine) Finish() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseSpeedRound {
		return ErrWrongPhase
	}

	e.clearQuestionLocked()
	e.phase = PhaseResults
	e.notifyLocked()

	return nil
}

// Reset returns to setup with fresh scores, destroying the current run.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearQuestionLocked()
	for i := range e.teams {
		e.teams[i].Score = 0
	}
	e.phase = PhaseSetup
	e.questionIndex = 0
	e.currentTeam = 0
	e.notifyLocked()
}

// Snapshot builds the public projection of the current state.
func (e *Engine) Snapshot() protocol.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	teams := make([]protocol.TeamScore, len(e.teams))
	for i, t := range e.teams {
		teams[i] = protocol.TeamScore{ID: t.ID, Name: t.Name, Score: t.Score}
	}

	var active *int
	if e.activeBuzz != NoTeam {
		id := e.activeBuzz
		active = &id
	}

	return protocol.Snapshot{
		Revision:       e.revision,
		Phase:          string(e.phase),
		QuestionIndex:  e.questionIndex,
		CurrentTeam:    e.currentTeam,
		ActiveBuzzTeam: active,
		AnswerLocked:   e.locked,
		HasQuestions:   e.hasQuestionsLocked(),
		TimerSeconds:   e.timerSecondsLocked(),
		Teams:          teams,
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// ActiveBuzzTeam returns the id of the team holding the buzzer, or
// NoTeam when the race is open.
func (e *Engine) ActiveBuzzTeam() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeBuzz
}

// CurrentTeam returns whose turn it is in the turn-based round.
func (e *Engine) CurrentTeam() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTeam
}

// Locked reports whether the current question's answer is locked.
func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// QuestionIndex returns the index of the current question.
func (e *Engine) QuestionIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.questionIndex
}

// Teams returns a copy of the team roster with scores.
func (e *Engine) Teams() []Team {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Team, len(e.teams))
	copy(out, e.teams)
	return out
}

// Revision returns the current state revision.
func (e *Engine) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// CurrentQuestion returns the question currently in play.
func (e *Engine) CurrentQuestion() (Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentQuestionLocked()
}

func (e *Engine) currentQuestionLocked() (Question, bool) {
	var list []Question
	switch e.phase {
	case PhaseTurnBased:
		list = e.questions.TurnBased
	case PhaseSpeedRound:
		list = e.questions.SpeedRound
	default:
		return Question{}, false
	}
	if e.questionIndex < 0 || e.questionIndex >= len(list) {
		return Question{}, false
	}
	return list[e.questionIndex], true
}

func (e *Engine) hasQuestionsLocked() bool {
	_, ok := e.currentQuestionLocked()
	return ok
}

// reopenLocked clears the buzz holder so the question is raceable again.
// Shared by the auto-skip timeout and the manual skip.
func (e *Engine) reopenLocked() {
	e.disarmLocked()
	e.activeBuzz = NoTeam
	e.selected = NoAnswer
	e.locked = false
	e.notifyLocked()
}

func (e *Engine) clearQuestionLocked() {
	e.disarmLocked()
	e.activeBuzz = NoTeam
	e.selected = NoAnswer
	e.locked = false
}

// notifyLocked records a state-affecting transition.
func (e *Engine) notifyLocked() {
	e.revision++
	if e.onChange != nil {
		e.onChange()
	}
}

// armLocked starts a one-shot countdown, replacing any pending one. The
// fire callback re-checks the generation under the lock, so a timer that
// was superseded between firing and locking acts on nothing.
func (e *Engine) armLocked(d time.Duration, fire func(gen uint64)) {
	e.disarmLocked()

	gen := e.timerGen
	timer := e.clock.NewTimer(d)
	cancel := make(chan struct{})
	e.timer = timer
	e.timerCancel = cancel
	e.deadline = e.clock.Now().Add(d)

	go func() {
		select {
		case <-timer.Chan():
			fire(gen)
		case <-cancel:
			timer.Stop()
		}
	}()
}

// disarmLocked cancels any pending countdown and invalidates its
// generation so a concurrently-firing timer becomes a no-op.
func (e *Engine) disarmLocked() {
	e.timerGen++
	if e.timerCancel != nil {
		close(e.timerCancel)
		e.timerCancel = nil
		e.timer = nil
	}
	e.deadline = time.Time{}
}

func (e *Engine) timerSecondsLocked() int {
	if e.deadline.IsZero() {
		return 0
	}
	remaining := e.deadline.Sub(e.clock.Now())
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// buzzExpired is the auto-skip: the buzzed-in team failed to have its
// answer graded in time, so the question reopens with no score change.
func (e *Engine) buzzExpired(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.timerGen {
		return
	}
	if e.phase != PhaseSpeedRound || e.activeBuzz == NoTeam || e.locked {
		return
	}

	e.log.Info().Int("team", e.activeBuzz).Msg("buzz window elapsed, team skipped")
	e.reopenLocked()
}

// turnExpired locks the turn-based question with no score change once
// the per-turn countdown runs out.
func (e *Engine) turnExpired(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.timerGen {
		return
	}
	if e.phase != PhaseTurnBased || e.locked {
		return
	}

	e.log.Info().Int("team", e.currentTeam).Msg("turn countdown elapsed, answer locked")
	e.disarmLocked()
	e.locked = true
	e.notifyLocked()
}
