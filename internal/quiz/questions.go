package quiz

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

// QuestionSet holds the question lists for both rounds.
type QuestionSet struct {
	TurnBased  []Question `yaml:"turn_based"`
	SpeedRound []Question `yaml:"speed_round"`
}

func (qs QuestionSet) validate() error {
	for name, list := range map[string][]Question{
		"turn_based":  qs.TurnBased,
		"speed_round": qs.SpeedRound,
	} {
		for i, q := range list {
			if q.Text == "" {
				return fmt.Errorf("quiz: %s question %d has no text", name, i)
			}
			if len(q.Options) < 2 {
				return fmt.Errorf("quiz: %s question %d needs at least two options", name, i)
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				return fmt.Errorf("quiz: %s question %d has correct index %d out of range", name, i, q.CorrectIndex)
			}
		}
	}

	return nil
}

// DefaultQuestions returns the embedded question set.
func DefaultQuestions() QuestionSet {
	qs, err := parseQuestions(defaultQuestions)
	if err != nil {
		panic("quiz: embedded question set invalid: " + err.Error())
	}
	return qs
}

// LoadQuestions reads a question set from a YAML file, or the embedded
// default set when path is empty.
func LoadQuestions(path string) (QuestionSet, error) {
	if path == "" {
		return DefaultQuestions(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return QuestionSet{}, fmt.Errorf("quiz: read questions: %w", err)
	}

	return parseQuestions(raw)
}

func parseQuestions(raw []byte) (QuestionSet, error) {
	var qs QuestionSet
	if err := yaml.Unmarshal(raw, &qs); err != nil {
		return QuestionSet{}, fmt.Errorf("quiz: parse questions: %w", err)
	}
	if err := qs.validate(); err != nil {
		return QuestionSet{}, err
	}

	return qs, nil
}
