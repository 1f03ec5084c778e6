// Package quiz holds the game domain: teams, questions, phases, and the
// buzz arbitration engine that owns the authoritative game state.
package quiz

import "fmt"

// Phase is the current stage of a game run.
type Phase string

const (
	// PhaseSetup is the pre-game lobby: teams connect, nothing is scored.
	PhaseSetup Phase = "setup"
	// PhaseTurnBased alternates a fixed 30-second question between teams.
	PhaseTurnBased Phase = "turn_based"
	// PhaseSpeedRound is the buzzer race: first team to buzz may answer.
	PhaseSpeedRound Phase = "speed_round"
	// PhaseResults is the final scoreboard.
	PhaseResults Phase = "results"
)

// Team is one participating team. IDs are stable 0..N-1, assigned at
// session creation. Owned exclusively by the host; clients only ever see
// the public projection in snapshots.
type Team struct {
	ID    int
	Name  string
	Score int
}

// NoTeam marks the absence of a team id (no active buzz, no turn).
const NoTeam = -1

// NoAnswer marks the absence of an answer selection.
const NoAnswer = -1

// Question is a single multiple-choice question.
type Question struct {
	Text         string   `yaml:"text"`
	Options      []string `yaml:"options"`
	CorrectIndex int      `yaml:"correct"`
}

// TeamKey returns the static join credential for a team. These are
// deliberately trivial: the quiz is a party game, not a security system.
func TeamKey(teamID int) string {
	if teamID < 0 {
		return ""
	}
	return fmt.Sprintf("TEAM%dPWD", teamID+1)
}
