package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/host"
	"github.com/Seednode/quizbox/internal/quiz"
	"github.com/Seednode/quizbox/internal/transport"
)

// gameManager holds the running sessions keyed by join code, so each
// game is its own isolated host loop.
type gameManager struct {
	mu       sync.Mutex
	sessions map[string]*host.Session

	cfg       *Config
	tr        transport.Transport
	questions quiz.QuestionSet
	log       zerolog.Logger
}

func newGameManager(cfg *Config, tr transport.Transport, questions quiz.QuestionSet, log zerolog.Logger) *gameManager {
	gm := &gameManager{
		sessions:  make(map[string]*host.Session),
		cfg:       cfg,
		tr:        tr,
		questions: questions,
		log:       log,
	}
	if cfg.sessionTimeout > 0 {
		go gm.reaperLoop(cfg.sessionTimeout)
	}
	return gm
}

// create opens a new session under a fresh join code.
func (gm *gameManager) create() (*host.Session, error) {
	s, err := host.NewSession(host.Config{
		Transport:  gm.tr,
		TeamNames:  gm.cfg.teams,
		Questions:  gm.questions,
		BuzzWindow: gm.cfg.buzzTimeout,
		TurnWindow: gm.cfg.turnTimeout,
		Logger:     gm.log,
	})
	if err != nil {
		return nil, err
	}

	gm.mu.Lock()
	gm.sessions[s.Code()] = s
	gm.mu.Unlock()

	gm.log.Info().Str("game", s.Code()).Msg("created game")

	return s, nil
}

// get returns the session for a join code, or nil.
func (gm *gameManager) get(code string) *host.Session {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return gm.sessions[code]
}

// reaperLoop periodically ends sessions that have been idle longer than
// idleTimeout.
func (gm *gameManager) reaperLoop(idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-idleTimeout)

		gm.mu.Lock()
		for code, s := range gm.sessions {
			if s.LastActive().Before(cutoff) {
				delete(gm.sessions, code)
				gm.log.Info().Str("game", code).Msg("reaping idle game")
				go s.Close()
			}
		}
		gm.mu.Unlock()
	}
}

// closeAll ends every session (shutdown path).
func (gm *gameManager) closeAll() {
	gm.mu.Lock()
	sessions := gm.sessions
	gm.sessions = make(map[string]*host.Session)
	gm.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
