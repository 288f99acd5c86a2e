// Package quiz checks answers to inline checks, grades section quizzes and
// runs timed mock exams.
package quiz

import (
	"errors"
	"fmt"
	"math"

	"github.com/p-n-ai/study-centre/internal/catalog"
)

var (
	ErrOptionOutOfRange = catalog.ErrOptionOutOfRange
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrExamExpired      = errors.New("exam time limit exceeded")
)

// Result is the outcome of one answered question.
type Result struct {
	QuestionID  string `json:"question_id"`
	Correct     bool   `json:"correct"`
	Answered    bool   `json:"answered"`
	Selected    int    `json:"selected"`
	Answer      int    `json:"answer"`
	Explanation string `json:"explanation"`
}

// Check grades a single selection.
func Check(q catalog.Question, selected int) (Result, error) {
	ok, err := q.Check(selected)
	if err != nil {
		return Result{}, err
	}
	return Result{
		QuestionID:  q.ID,
		Correct:     ok,
		Answered:    true,
		Selected:    selected,
		Answer:      q.Answer,
		Explanation: q.Explanation,
	}, nil
}

// Score is a graded set of questions.
type Score struct {
	Results       []Result `json:"results"`
	Correct       int      `json:"correct"`
	Total         int      `json:"total"`
	Percent       float64  `json:"percent"`
	PassThreshold int      `json:"pass_threshold"`
	Passed        bool     `json:"passed"`
}

// Grade scores answers (question id -> selected option) against questions.
// Unanswered questions count as incorrect; answers to questions outside the
// set are rejected.
func Grade(questions []catalog.Question, answers map[string]int, passThreshold int) (Score, error) {
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	for id := range answers {
		if !known[id] {
			return Score{}, fmt.Errorf("question %s: %w", id, ErrUnknownQuestion)
		}
	}

	s := Score{Total: len(questions), PassThreshold: passThreshold, Results: make([]Result, 0, len(questions))}
	for _, q := range questions {
		selected, ok := answers[q.ID]
		if !ok {
			s.Results = append(s.Results, Result{
				QuestionID:  q.ID,
				Selected:    -1,
				Answer:      q.Answer,
				Explanation: q.Explanation,
			})
			continue
		}
		r, err := Check(q, selected)
		if err != nil {
			return Score{}, err
		}
		if r.Correct {
			s.Correct++
		}
		s.Results = append(s.Results, r)
	}
	if s.Total > 0 {
		s.Percent = math.Round(float64(s.Correct)*1000/float64(s.Total)) / 10
		s.Passed = s.Percent >= float64(passThreshold)
	}
	return s, nil
}

// Prompt is a question as shown to a learner, without the answer.
type Prompt struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// Prompts strips answers and explanations from questions.
func Prompts(questions []catalog.Question) []Prompt {
	out := make([]Prompt, 0, len(questions))
	for _, q := range questions {
		out = append(out, Prompt{
			ID:         q.ID,
			Question:   q.Text,
			Options:    append([]string{}, q.Options...),
			Category:   q.Category,
			Difficulty: q.Difficulty,
		})
	}
	return out
}
