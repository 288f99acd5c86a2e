package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/progress"
)

// Service grades submissions and persists attempts.
type Service struct {
	store   progress.Store
	events  progress.EventLogger
	grace   time.Duration
	now     func() time.Time
	newRand func() *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithGrace accepts exam submissions up to d past the deadline.
func WithGrace(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSeed makes exam question selection deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.newRand = func() *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }
	}
}

// NewService creates a quiz service. A nil events logger discards events.
func NewService(store progress.Store, events progress.EventLogger, opts ...Option) *Service {
	if events == nil {
		events = progress.NopEventLogger{}
	}
	s := &Service{
		store:  store,
		events: events,
		now:    time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CheckInline grades one inline check on a section.
func (s *Service) CheckInline(ctx context.Context, learnerID, route string, sec *catalog.Section, checkID string, selected int) (Result, error) {
	q, ok := sec.InlineCheck(checkID)
	if !ok {
		return Result{}, fmt.Errorf("inline check %s: %w", checkID, ErrUnknownQuestion)
	}
	r, err := Check(q, selected)
	if err != nil {
		return Result{}, err
	}
	s.logEvent(ctx, progress.Event{
		LearnerID: learnerID,
		Type:      progress.EventInlineChecked,
		Route:     route,
		Data:      map[string]any{"check": checkID, "selected": selected, "correct": r.Correct},
	})
	return r, nil
}

// SubmitQuiz grades a section quiz and records a submitted attempt. An empty
// learnerID grades without recording.
func (s *Service) SubmitQuiz(ctx context.Context, learnerID, route string, sec *catalog.Section, answers map[string]int) (*progress.Attempt, Score, error) {
	score, err := Grade(sec.Quiz.Questions, answers, sec.QuizPassThreshold())
	if err != nil {
		return nil, Score{}, err
	}
	if learnerID == "" {
		return nil, score, nil
	}

	now := s.now()
	a, err := s.store.Create(ctx, progress.Attempt{
		LearnerID:   learnerID,
		Route:       route,
		Kind:        progress.KindQuiz,
		QuestionIDs: questionIDs(sec.Quiz.Questions),
		Answers:     answers,
		Correct:     score.Correct,
		Total:       score.Total,
		Percent:     score.Percent,
		Passed:      score.Passed,
		Status:      progress.StatusSubmitted,
		StartedAt:   now,
		SubmittedAt: &now,
	})
	if err != nil {
		return nil, Score{}, fmt.Errorf("saving quiz attempt: %w", err)
	}
	s.logEvent(ctx, progress.Event{
		LearnerID: learnerID,
		Type:      progress.EventQuizSubmitted,
		Route:     route,
		Data:      map[string]any{"attempt_id": a.ID, "percent": score.Percent, "passed": score.Passed},
	})
	return a, score, nil
}

// StartExam selects the exam's questions and records an in-progress attempt
// due at now + the exam time limit.
func (s *Service) StartExam(ctx context.Context, learnerID, route string, exam *catalog.Exam) (*progress.Attempt, []catalog.Question, error) {
	if learnerID == "" {
		return nil, nil, fmt.Errorf("learner_id is required")
	}
	questions := SelectBalanced(exam.Questions, exam.TotalQuestions, exam.Categories, s.newRand())

	now := s.now()
	a := progress.Attempt{
		LearnerID:   learnerID,
		Route:       route,
		Kind:        progress.KindExam,
		QuestionIDs: questionIDs(questions),
		Total:       len(questions),
		Status:      progress.StatusInProgress,
		StartedAt:   now,
	}
	if limit := exam.TimeLimit(); limit > 0 {
		deadline := now.Add(limit)
		a.Deadline = &deadline
	}
	saved, err := s.store.Create(ctx, a)
	if err != nil {
		return nil, nil, fmt.Errorf("saving exam attempt: %w", err)
	}
	s.logEvent(ctx, progress.Event{
		LearnerID: learnerID,
		Type:      progress.EventExamStarted,
		Route:     route,
		Data:      map[string]any{"attempt_id": saved.ID, "questions": len(questions)},
	})
	return saved, questions, nil
}

// ExamQuestions returns the questions drawn for an attempt, in draw order.
func ExamQuestions(exam *catalog.Exam, a *progress.Attempt) ([]catalog.Question, error) {
	out := make([]catalog.Question, 0, len(a.QuestionIDs))
	for _, id := range a.QuestionIDs {
		q, ok := exam.Question(id)
		if !ok {
			return nil, fmt.Errorf("attempt %s: bank question %s: %w", a.ID, id, ErrUnknownQuestion)
		}
		out = append(out, q)
	}
	return out, nil
}

// Attempt returns a stored attempt.
func (s *Service) Attempt(ctx context.Context, id string) (*progress.Attempt, error) {
	return s.store.Get(ctx, id)
}

// Attempts returns a learner's attempts, newest first.
func (s *Service) Attempts(ctx context.Context, learnerID string, limit int) ([]progress.Attempt, error) {
	return s.store.ListByLearner(ctx, learnerID, limit)
}

// SubmitExam grades an in-progress exam attempt against the exam pass
// threshold. A submission later than deadline + grace is recorded as expired,
// failed, and reported with ErrExamExpired.
func (s *Service) SubmitExam(ctx context.Context, attemptID string, exam *catalog.Exam, answers map[string]int) (*progress.Attempt, Score, error) {
	a, err := s.store.Get(ctx, attemptID)
	if err != nil {
		return nil, Score{}, err
	}
	if a.Kind != progress.KindExam {
		return nil, Score{}, fmt.Errorf("%w: %s is not an exam attempt", progress.ErrNotFound, a.ID)
	}
	if a.Status != progress.StatusInProgress {
		return nil, Score{}, fmt.Errorf("%w: %s", progress.ErrAlreadySubmitted, a.ID)
	}

	questions, err := ExamQuestions(exam, a)
	if err != nil {
		return nil, Score{}, err
	}
	score, err := Grade(questions, answers, exam.PassThreshold)
	if err != nil {
		return nil, Score{}, err
	}

	now := s.now()
	result := progress.Result{
		Answers:     answers,
		Correct:     score.Correct,
		Total:       score.Total,
		Percent:     score.Percent,
		Passed:      score.Passed,
		Status:      progress.StatusSubmitted,
		SubmittedAt: now,
	}
	expired := a.Deadline != nil && now.After(a.Deadline.Add(s.grace))
	if expired {
		result.Status = progress.StatusExpired
		result.Passed = false
		score.Passed = false
	}

	done, err := s.store.Finish(ctx, a.ID, result)
	if err != nil {
		if errors.Is(err, progress.ErrAlreadySubmitted) {
			return nil, Score{}, err
		}
		return nil, Score{}, fmt.Errorf("saving exam result: %w", err)
	}
	s.logEvent(ctx, progress.Event{
		LearnerID: a.LearnerID,
		Type:      progress.EventExamSubmitted,
		Route:     a.Route,
		Data: map[string]any{
			"attempt_id": a.ID,
			"percent":    score.Percent,
			"passed":     score.Passed,
			"status":     string(done.Status),
		},
	})
	if expired {
		return done, score, fmt.Errorf("attempt %s: %w", a.ID, ErrExamExpired)
	}
	return done, score, nil
}

func (s *Service) logEvent(ctx context.Context, ev progress.Event) {
	if err := s.events.LogEvent(ctx, ev); err != nil {
		slog.Warn("failed to log event", "type", ev.Type, "route", ev.Route, "error", err)
	}
}

func questionIDs(qs []catalog.Question) []string {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids
}
