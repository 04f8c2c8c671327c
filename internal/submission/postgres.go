package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore stores submissions in the submissions table. Every snapshot
// field lives in its own JSONB column so the row is written by one INSERT.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type jsonColumns struct {
	questions, config, raw, answers, result []byte
}

func marshalColumns(s *Submission) (*jsonColumns, error) {
	var c jsonColumns
	var err error
	if c.questions, err = json.Marshal(s.Questions); err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}
	if c.config, err = json.Marshal(s.Config); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if c.raw, err = json.Marshal(s.RawAnswers); err != nil {
		return nil, fmt.Errorf("marshal raw answers: %w", err)
	}
	if c.answers, err = json.Marshal(s.Answers); err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	if c.result, err = json.Marshal(s.Result); err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &c, nil
}

func (p *PostgresStore) Create(ctx context.Context, s *Submission) error {
	c, err := marshalColumns(s)
	if err != nil {
		return err
	}
	var rescoreOf *string
	if s.RescoreOf != "" {
		rescoreOf = &s.RescoreOf
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO submissions (id, framework_code, version_id, version_number, subject_ref,
			questions, config, raw_answers, answers, result, engine_version, rescore_of, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.FrameworkCode, s.VersionID, s.VersionNumber, s.SubjectRef,
		c.questions, c.config, c.raw, c.answers, c.result, s.EngineVersion, rescoreOf, s.SubmittedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("submission %s: %w", s.ID, ErrExists)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Submission, error) {
	var (
		s         Submission
		c         jsonColumns
		rescoreOf sql.NullString
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, framework_code, version_id, version_number, subject_ref,
			questions, config, raw_answers, answers, result, engine_version, rescore_of, submitted_at
		 FROM submissions WHERE id = $1`, id,
	).Scan(&s.ID, &s.FrameworkCode, &s.VersionID, &s.VersionNumber, &s.SubjectRef,
		&c.questions, &c.config, &c.raw, &c.answers, &c.result, &s.EngineVersion, &rescoreOf, &s.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	s.RescoreOf = rescoreOf.String
	s.SubmittedAt = s.SubmittedAt.UTC()

	for _, col := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"questions", c.questions, &s.Questions},
		{"config", c.config, &s.Config},
		{"raw_answers", c.raw, &s.RawAnswers},
		{"answers", c.answers, &s.Answers},
		{"result", c.result, &s.Result},
	} {
		if err := json.Unmarshal(col.data, col.dst); err != nil {
			return nil, fmt.Errorf("submission %s: decode %s: %w", id, col.name, err)
		}
	}
	return &s, nil
}
