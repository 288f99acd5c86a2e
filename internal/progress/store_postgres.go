package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

const attemptColumns = `id::text, learner_id, route, kind, question_ids, answers, correct, total,
	percent, passed, status, started_at, deadline, submitted_at`

// PostgresStore is a PostgreSQL-backed Store implementation. The attempts
// table is created by database.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed attempt store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, a Attempt) (*Attempt, error) {
	if err := validate(a); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if a.Status == "" {
		a.Status = StatusInProgress
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}
	ids, answers, err := encodeJSON(a)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, learner_id, route, kind, question_ids, answers, correct, total,
		   percent, passed, status, started_at, deadline, submitted_at)
		 VALUES ($1::uuid, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+attemptColumns,
		uuid.NewString(),
		a.LearnerID,
		a.Route,
		string(a.Kind),
		ids,
		answers,
		a.Correct,
		a.Total,
		a.Percent,
		a.Passed,
		string(a.Status),
		a.StartedAt,
		a.Deadline,
		a.SubmittedAt,
	)
	out, err := scanAttempt(row)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Attempt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanAttempt(s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Finish(ctx context.Context, id string, r Result) (*Attempt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	status := r.Status
	if status == "" || status == StatusInProgress {
		status = StatusSubmitted
	}
	submittedAt := r.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	answers, err := json.Marshal(copyAnswers(r.Answers))
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}

	out, err := scanAttempt(s.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET answers = $2::jsonb, correct = $3, total = $4, percent = $5, passed = $6,
		     status = $7, submitted_at = $8
		 WHERE id = $1::uuid AND status = $9
		 RETURNING `+attemptColumns,
		id,
		string(answers),
		r.Correct,
		r.Total,
		r.Percent,
		r.Passed,
		string(status),
		submittedAt,
		string(StatusInProgress),
	))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("finish attempt: %w", err)
	}

	// No in-progress row matched: tell a finished attempt from a missing one.
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrAlreadySubmitted, id)
}

func (s *PostgresStore) ListByLearner(ctx context.Context, learnerID string, limit int) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE learner_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		learnerID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func encodeJSON(a Attempt) (string, string, error) {
	ids := a.QuestionIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("marshal question ids: %w", err)
	}
	answersJSON, err := json.Marshal(copyAnswers(a.Answers))
	if err != nil {
		return "", "", fmt.Errorf("marshal answers: %w", err)
	}
	return string(idsJSON), string(answersJSON), nil
}

func scanAttempt(row pgx.Row) (*Attempt, error) {
	var a Attempt
	var kind, status string
	var idsJSON, answersJSON []byte
	if err := row.Scan(
		&a.ID,
		&a.LearnerID,
		&a.Route,
		&kind,
		&idsJSON,
		&answersJSON,
		&a.Correct,
		&a.Total,
		&a.Percent,
		&a.Passed,
		&status,
		&a.StartedAt,
		&a.Deadline,
		&a.SubmittedAt,
	); err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)
	a.Status = Status(status)
	if err := json.Unmarshal(idsJSON, &a.QuestionIDs); err != nil {
		return nil, fmt.Errorf("decode question ids: %w", err)
	}
	if err := json.Unmarshal(answersJSON, &a.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if a.Answers == nil {
		a.Answers = map[string]int{}
	}
	return &a, nil
}
