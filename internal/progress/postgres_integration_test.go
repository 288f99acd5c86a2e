//go:build integration

package progress_test

import (
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/study-centre/internal/platform/database"
	"github.com/p-n-ai/study-centre/internal/progress"
)

func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := t.Context()

	ctr, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("study_centre"),
		postgres.WithUsername("study"),
		postgres.WithPassword("study"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(t.Context()); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := database.New(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Migrations must be re-runnable.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return db
}

func TestPostgresStore_Integration(t *testing.T) {
	db := startPostgres(t)
	store, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := t.Context()

	deadline := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Millisecond)
	a, err := store.Create(ctx, progress.Attempt{
		LearnerID:   "learner-1",
		Route:       "general-upskilling/fire-safety-mock-exam",
		Kind:        progress.KindExam,
		QuestionIDs: []string{"3", "7"},
		Deadline:    &deadline,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("Deadline = %v, want %v", got.Deadline, deadline)
	}
	if len(got.QuestionIDs) != 2 {
		t.Errorf("QuestionIDs = %v", got.QuestionIDs)
	}

	done, err := store.Finish(ctx, a.ID, progress.Result{
		Answers: map[string]int{"3": 1, "7": 0},
		Correct: 1, Total: 2, Percent: 50, Status: progress.StatusSubmitted,
	})
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if done.Answers["3"] != 1 || done.SubmittedAt == nil {
		t.Errorf("Finish() = %+v", done)
	}

	if _, err := store.Finish(ctx, a.ID, progress.Result{}); !errors.Is(err, progress.ErrAlreadySubmitted) {
		t.Errorf("second Finish() error = %v, want ErrAlreadySubmitted", err)
	}
	if _, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, "not-a-uuid"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("Get(not-a-uuid) error = %v, want ErrNotFound", err)
	}

	list, err := store.ListByLearner(ctx, "learner-1", 10)
	if err != nil {
		t.Fatalf("ListByLearner() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID {
		t.Errorf("ListByLearner() = %+v", list)
	}
}

func TestPostgresEventLogger_Integration(t *testing.T) {
	db := startPostgres(t)
	logger := progress.NewPostgresEventLogger(db.Pool)

	err := logger.LogEvent(t.Context(), progress.Event{
		LearnerID: "learner-1",
		Type:      progress.EventQuizSubmitted,
		Route:     "general-upskilling/ei-module-1-section-1",
		Data:      map[string]any{"percent": 80},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	var n int
	if err := db.Pool.QueryRow(t.Context(),
		`SELECT count(*) FROM events WHERE event_type = $1`, progress.EventQuizSubmitted).Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}
