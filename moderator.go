package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/Seednode/quizbox/internal/host"
	"github.com/Seednode/quizbox/internal/protocol"
	"github.com/Seednode/quizbox/internal/quiz"
	"github.com/Seednode/quizbox/internal/transport"
)

// The moderator drives the game over plain HTTP: the engine never grades
// anything on its own, it waits for these calls.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// withSession resolves :code to a running session before invoking fn.
func withSession(gm *gameManager, fn func(w http.ResponseWriter, r *http.Request, s *host.Session)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s := gm.get(ps.ByName("code"))
		if s == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such game"})
			return
		}
		s.Touch()
		fn(w, r, s)
	}
}

func engineStatus(err error) int {
	switch {
	case errors.Is(err, quiz.ErrWrongPhase),
		errors.Is(err, quiz.ErrAnswerLocked),
		errors.Is(err, quiz.ErrNoActiveBuzz),
		errors.Is(err, quiz.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrUnknownTeam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func createGame(cfg *Config, gm *gameManager, log zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s, err := gm.create()
		if err != nil {
			log.Error().Err(err).Msg("game creation failed")
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{
			"code":     s.Code(),
			"join_url": cfg.scheme() + "://" + r.Host + cfg.prefix + "/game/" + s.Code(),
		})
	}
}

// serveTeamSocket hands the websocket join off to the transport after
// marking the session active.
func serveTeamSocket(gm *gameManager, tr *transport.Websocket) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if s := gm.get(ps.ByName("code")); s != nil {
			s.Touch()
		}
		tr.Handle(w, r, ps)
	}
}

// moderatorState is the moderator's view: the public snapshot plus the
// connected-team set and the current question with its answer key.
type moderatorState struct {
	protocol.Snapshot
	ConnectedTeams []int              `json:"connected_teams"`
	Question       *moderatorQuestion `json:"question,omitempty"`
}

type moderatorQuestion struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

func serveGameState(gm *gameManager) httprouter.Handle {
	return withSession(gm, func(w http.ResponseWriter, r *http.Request, s *host.Session) {
		state := moderatorState{
			Snapshot:       s.Snapshot(),
			ConnectedTeams: s.Connected(),
		}
		if q, ok := s.Engine().CurrentQuestion(); ok {
			state.Question = &moderatorQuestion{
				Text:         q.Text,
				Options:      q.Options,
				CorrectIndex: q.CorrectIndex,
			}
		}

		writeJSON(w, http.StatusOK, state)
	})
}

func startGame(gm *gameManager) httprouter.Handle {
	return withSession(gm, func(w http.ResponseWriter, r *http.Request, s *host.Session) {
		var body struct {
			Teams []string `json:"teams"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		if err := s.Engine().Start(body.Teams); err != nil {
			writeError(w, engineStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, s.Snapshot())
	})
}

func gradeAnswer(gm *gameManager) httprouter.Handle {
	return withSession(gm, func(w http.ResponseWriter, r *http.Request, s *host.Session) {
		var body struct {
			Team   int `json:"team"`
			Answer int `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		correct, err := s.Engine().SelectAnswer(body.Team, body.Answer)
		if err != nil {
			writeError(w, engineStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"correct": correct,
			"state":   s.Snapshot(),
		})
	})
}

func nextQuestion(gm *gameManager) httprouter.Handle {
	return withSession(gm, func(w http.ResponseWriter, r *http.Request, s *host.Session) {
		if err := s.Engine().NextQuestion(); err != nil {
			writeError(w, engineStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, s.Snapshot())
	})
}

func skipTeam(gm *gameManager) httprouter.Handle {
	return withSession(gm, func(w http.ResponseWriter, r *http.Request, s *host.Session) {
		if err := s.Engine().Skip(); err != nil {
			writeError(w, engineStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, s.Snapshot())
	})
}

func finishGame(gm *gameManager) httprouter.Handle {
	return withSession(gm, func(w http.ResponseWriter, r *http.Request, s *host.Session) {
		if err := s.Engine().Finish(); err != nil {
			writeError(w, engineStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, s.Snapshot())
	})
}

func resetGame(gm *gameManager) httprouter.Handle {
	return withSession(gm, func(w http.ResponseWriter, r *http.Request, s *host.Session) {
		s.Engine().Reset()
		writeJSON(w, http.StatusOK, s.Snapshot())
	})
}
