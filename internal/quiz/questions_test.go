package quiz

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultQuestions(t *testing.T) {
	qs := DefaultQuestions()

	if len(qs.TurnBased) == 0 {
		t.Fatal("embedded set has no turn-based questions")
	}
	if len(qs.SpeedRound) == 0 {
		t.Fatal("embedded set has no speed-round questions")
	}
}

func TestLoadQuestionsEmptyPathUsesDefault(t *testing.T) {
	qs, err := LoadQuestions("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(qs.TurnBased) == 0 {
		t.Fatal("default set not returned for empty path")
	}
}

func TestLoadQuestionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	raw := `turn_based:
  - text: "What is 2+2?"
    options: ["3", "4", "5"]
    correct: 1
speed_round:
  - text: "Largest planet?"
    options: ["Mars", "Jupiter"]
    correct: 1
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	qs, err := LoadQuestions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(qs.TurnBased) != 1 || len(qs.SpeedRound) != 1 {
		t.Fatalf("loaded %d/%d questions, want 1/1", len(qs.TurnBased), len(qs.SpeedRound))
	}
	if qs.TurnBased[0].CorrectIndex != 1 {
		t.Fatalf("correct index = %d, want 1", qs.TurnBased[0].CorrectIndex)
	}
}

func TestLoadQuestionsMissingFile(t *testing.T) {
	if _, err := LoadQuestions(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("load of a missing file succeeded")
	}
}

func TestLoadQuestionsRejectsInvalid(t *testing.T) {
	for name, raw := range map[string]string{
		"no text": `turn_based:
  - options: ["a", "b"]
    correct: 0
`,
		"one option": `speed_round:
  - text: "q"
    options: ["a"]
    correct: 0
`,
		"index out of range": `speed_round:
  - text: "q"
    options: ["a", "b"]
    correct: 5
`,
		"not yaml": `{{{`,
	} {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		if _, err := LoadQuestions(path); err == nil {
			t.Fatalf("%s: load succeeded, want error", name)
		}
	}
}

func TestTeamKey(t *testing.T) {
	for teamID, want := range map[int]string{
		0:  "TEAM1PWD",
		1:  "TEAM2PWD",
		2:  "TEAM3PWD",
		-1: "",
	} {
		if got := TeamKey(teamID); got != want {
			t.Fatalf("TeamKey(%d) = %q, want %q", teamID, got, want)
		}
	}
}
