package catalog

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrOptionOutOfRange is returned when a selected option index does not exist.
var ErrOptionOutOfRange = errors.New("selected option out of range")

// Check reports whether selected is the correct option.
func (q Question) Check(selected int) (bool, error) {
	if selected < 0 || selected >= len(q.Options) {
		return false, fmt.Errorf("question %s: option %d of %d: %w", q.ID, selected, len(q.Options), ErrOptionOutOfRange)
	}
	return selected == q.Answer, nil
}

// CorrectOption returns the text of the correct option.
func (q Question) CorrectOption() string {
	if q.Answer < 0 || q.Answer >= len(q.Options) {
		return ""
	}
	return q.Options[q.Answer]
}

// rawQuestion accepts every answer field name found in authored content.
type rawQuestion struct {
	ID            string   `yaml:"id"` // numeric ids decode as their literal text
	Question      string   `yaml:"question"`
	Options       []string `yaml:"options"`
	Answer        *int     `yaml:"answer"`
	CorrectAnswer *int     `yaml:"correctAnswer"`
	CorrectSnake  *int     `yaml:"correct_answer"`
	CorrectIndex  *int     `yaml:"correctIndex"`
	IndexSnake    *int     `yaml:"correct_index"`
	Explanation   string   `yaml:"explanation"`
	Category      string   `yaml:"category"`
	Section       string   `yaml:"section"`
	Topic         string   `yaml:"topic"`
	Difficulty    string   `yaml:"difficulty"`
}

// questionFields lists the keys rawQuestion accepts. node.Decode starts a
// fresh decoder, so the caller's KnownFields setting does not reach here.
var questionFields = map[string]bool{
	"id": true, "question": true, "options": true, "explanation": true,
	"answer": true, "correctAnswer": true, "correct_answer": true, "correctIndex": true, "correct_index": true,
	"category": true, "section": true, "topic": true, "difficulty": true,
}

// UnmarshalYAML unifies the answer field names into Answer. Unknown keys are
// rejected.
func (q *Question) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if k := node.Content[i]; !questionFields[k.Value] {
				return fmt.Errorf("line %d: field %s not found in question", k.Line, k.Value)
			}
		}
	}

	var raw rawQuestion
	if err := node.Decode(&raw); err != nil {
		return err
	}

	answer, err := unifyAnswer(map[string]*int{
		"answer":         raw.Answer,
		"correctAnswer":  raw.CorrectAnswer,
		"correct_answer": raw.CorrectSnake,
		"correctIndex":   raw.CorrectIndex,
		"correct_index":  raw.IndexSnake,
	})
	if err != nil {
		return fmt.Errorf("line %d: question %q: %w", node.Line, raw.ID, err)
	}

	*q = Question{
		ID:          raw.ID,
		Kind:        q.Kind,
		Text:        raw.Question,
		Options:     raw.Options,
		Answer:      answer,
		Explanation: raw.Explanation,
		Category:    raw.Category,
		Section:     raw.Section,
		Topic:       raw.Topic,
		Difficulty:  raw.Difficulty,
	}
	return nil
}

func unifyAnswer(fields map[string]*int) (int, error) {
	var (
		value int
		from  string
	)
	// Fixed order keeps error messages stable.
	for _, name := range []string{"answer", "correctAnswer", "correct_answer", "correctIndex", "correct_index"} {
		v := fields[name]
		if v == nil {
			continue
		}
		if from == "" {
			value, from = *v, name
			continue
		}
		if *v != value {
			return 0, fmt.Errorf("%s=%d conflicts with %s=%d", name, *v, from, value)
		}
	}
	if from == "" {
		return 0, errors.New("no answer field")
	}
	return value, nil
}
