// Package progress persists learner quiz and exam attempts, and the
// analytics events emitted while learners work through the study centre.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an attempt id is unknown.
	ErrNotFound = errors.New("attempt not found")
	// ErrAlreadySubmitted is returned when finishing an attempt that is no longer in progress.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

// Kind is what an attempt grades.
type Kind string

const (
	KindQuiz Kind = "quiz"
	KindExam Kind = "exam"
)

// Status is the lifecycle state of an attempt.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusExpired    Status = "expired"
)

// Attempt is one graded (or pending) run through a quiz or mock exam.
type Attempt struct {
	ID          string         `json:"id"`
	LearnerID   string         `json:"learner_id"`
	Route       string         `json:"route"`
	Kind        Kind           `json:"kind"`
	QuestionIDs []string       `json:"question_ids"`
	Answers     map[string]int `json:"answers,omitempty"`
	Correct     int            `json:"correct"`
	Total       int            `json:"total"`
	Percent     float64        `json:"percent"`
	Passed      bool           `json:"passed"`
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
}

// Result is the outcome recorded when an attempt is finished.
type Result struct {
	Answers     map[string]int
	Correct     int
	Total       int
	Percent     float64
	Passed      bool
	Status      Status // StatusSubmitted or StatusExpired
	SubmittedAt time.Time
}

// Store persists attempts.
type Store interface {
	// Create saves a new attempt and returns it with ID and StartedAt set.
	Create(ctx context.Context, a Attempt) (*Attempt, error)
	Get(ctx context.Context, id string) (*Attempt, error)
	// Finish records the result of an in-progress attempt. It returns
	// ErrAlreadySubmitted if the attempt was already finished.
	Finish(ctx context.Context, id string, r Result) (*Attempt, error)
	// ListByLearner returns the learner's attempts, newest first.
	ListByLearner(ctx context.Context, learnerID string, limit int) ([]Attempt, error)
}

func validate(a Attempt) error {
	if a.LearnerID == "" {
		return fmt.Errorf("learner_id is required")
	}
	if a.Route == "" {
		return fmt.Errorf("route is required")
	}
	switch a.Kind {
	case KindQuiz, KindExam:
	default:
		return fmt.Errorf("unknown attempt kind %q", a.Kind)
	}
	return nil
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory attempt store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string]*Attempt),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, a Attempt) (*Attempt, error) {
	if err := validate(a); err != nil {
		return nil, err
	}
	a.ID = uuid.NewString()
	if a.StartedAt.IsZero() {
		a.StartedAt = s.now()
	}
	if a.Status == "" {
		a.Status = StatusInProgress
	}
	a.QuestionIDs = append([]string{}, a.QuestionIDs...)
	a.Answers = copyAnswers(a.Answers)

	s.mu.Lock()
	s.attempts[a.ID] = &a
	s.mu.Unlock()

	out := clone(a)
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := clone(*a)
	return &out, nil
}

func (s *MemoryStore) Finish(_ context.Context, id string, r Result) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if a.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubmitted, id)
	}
	apply(a, r, s.now)
	out := clone(*a)
	return &out, nil
}

func (s *MemoryStore) ListByLearner(_ context.Context, learnerID string, limit int) ([]Attempt, error) {
	s.mu.RLock()
	var out []Attempt
	for _, a := range s.attempts {
		if a.LearnerID == learnerID {
			out = append(out, clone(*a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func apply(a *Attempt, r Result, now func() time.Time) {
	a.Answers = copyAnswers(r.Answers)
	a.Correct = r.Correct
	a.Total = r.Total
	a.Percent = r.Percent
	a.Passed = r.Passed
	a.Status = r.Status
	if a.Status == "" || a.Status == StatusInProgress {
		a.Status = StatusSubmitted
	}
	at := r.SubmittedAt
	if at.IsZero() {
		at = now()
	}
	a.SubmittedAt = &at
}

func clone(a Attempt) Attempt {
	a.QuestionIDs = append([]string{}, a.QuestionIDs...)
	a.Answers = copyAnswers(a.Answers)
	return a
}

func copyAnswers(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
