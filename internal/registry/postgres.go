package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/riskframe/riskframe/pkg/questionnaire"
)

// PostgresStore implements Store backed by Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const questionColumns = `key, label, type, options, module, min_value, max_value, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*questionnaire.Question, error) {
	q := &questionnaire.Question{}
	var options []byte
	var lo, hi sql.NullFloat64
	if err := row.Scan(&q.Key, &q.Label, &q.Type, &options, &q.Module, &lo, &hi, &q.Active, &q.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("decode options of %s: %w", q.Key, err)
	}
	if lo.Valid {
		q.Min = &lo.Float64
	}
	if hi.Valid {
		q.Max = &hi.Float64
	}
	return q, nil
}

func jsonList(items []string) []byte {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return b
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateQuestion inserts a catalog question.
func (s *PostgresStore) CreateQuestion(ctx context.Context, q questionnaire.Question) (*questionnaire.Question, error) {
	out, err := scanQuestion(s.db.QueryRowContext(ctx,
		`INSERT INTO questions (key, label, type, options, module, min_value, max_value, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+questionColumns,
		q.Key, q.Label, q.Type, jsonList(q.Options), q.Module, q.Min, q.Max, q.Active,
	))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("question %s: %w", q.Key, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create question %s: %w", q.Key, err)
	}
	return out, nil
}

// UpdateQuestion rewrites an unbound question.
func (s *PostgresStore) UpdateQuestion(ctx context.Context, q questionnaire.Question) (*questionnaire.Question, error) {
	out, err := scanQuestion(s.db.QueryRowContext(ctx,
		`UPDATE questions
		    SET label = $2, type = $3, options = $4, module = $5, min_value = $6, max_value = $7
		  WHERE key = $1
		    AND NOT EXISTS (SELECT 1 FROM question_bindings WHERE question_key = $1)
		 RETURNING `+questionColumns,
		q.Key, q.Label, q.Type, jsonList(q.Options), q.Module, q.Min, q.Max,
	))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM questions WHERE key = $1)`, q.Key,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("update question %s: %w", q.Key, err)
		}
		if exists {
			return nil, fmt.Errorf("question %s: %w", q.Key, ErrQuestionReferenced)
		}
		return nil, fmt.Errorf("question %s: %w", q.Key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update question %s: %w", q.Key, err)
	}
	return out, nil
}

// SetQuestionActive flips the soft-deactivation flag.
func (s *PostgresStore) SetQuestionActive(ctx context.Context, key string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET active = $2 WHERE key = $1`, key, active)
	if err != nil {
		return fmt.Errorf("set question %s active: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", key, ErrNotFound)
	}
	return nil
}

// GetQuestions returns the questions stored under keys, in key order.
// Missing keys are skipped.
func (s *PostgresStore) GetQuestions(ctx context.Context, keys []string) ([]questionnaire.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE key = ANY($1) ORDER BY key`,
		pq.Array(keys),
	)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return collectQuestions(rows)
}

// ListQuestions returns the whole catalog.
func (s *PostgresStore) ListQuestions(ctx context.Context) ([]questionnaire.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return collectQuestions(rows)
}

func collectQuestions(rows *sql.Rows) ([]questionnaire.Question, error) {
	defer rows.Close()
	var out []questionnaire.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// CreateFramework inserts a framework.
func (s *PostgresStore) CreateFramework(ctx context.Context, f Framework) (*Framework, error) {
	out := &Framework{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO frameworks (id, code, name, engine, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, code, name, engine, active, created_at`,
		f.ID, f.Code, f.Name, f.Engine, f.Active,
	).Scan(&out.ID, &out.Code, &out.Name, &out.Engine, &out.Active, &out.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("framework %s: %w", f.Code, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create framework %s: %w", f.Code, err)
	}
	return out, nil
}

// GetFramework looks up a framework by code.
func (s *PostgresStore) GetFramework(ctx context.Context, code string) (*Framework, error) {
	f := &Framework{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, engine, active, created_at FROM frameworks WHERE code = $1`,
		code,
	).Scan(&f.ID, &f.Code, &f.Name, &f.Engine, &f.Active, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("framework %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get framework %s: %w", code, err)
	}
	return f, nil
}

// ListFrameworks returns all frameworks.
func (s *PostgresStore) ListFrameworks(ctx context.Context) ([]Framework, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, engine, active, created_at FROM frameworks ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("list frameworks: %w", err)
	}
	defer rows.Close()

	var out []Framework
	for rows.Next() {
		var f Framework
		if err := rows.Scan(&f.ID, &f.Code, &f.Name, &f.Engine, &f.Active, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan framework: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// lockFramework takes a row lock on the framework so version numbering and
// default flips serialize per framework.
func lockFramework(ctx context.Context, tx *sql.Tx, code string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM frameworks WHERE code = $1 FOR UPDATE`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("framework %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lock framework %s: %w", code, err)
	}
	return id, nil
}

// CreateVersion inserts a version and its bindings in one transaction.
func (s *PostgresStore) CreateVersion(ctx context.Context, v Version) (*Version, error) {
	cfg, err := json.Marshal(v.Config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	frameworkID, err := lockFramework(ctx, tx, v.FrameworkCode)
	if err != nil {
		return nil, err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM framework_versions WHERE framework_id = $1`,
		frameworkID,
	).Scan(&v.Number); err != nil {
		return nil, fmt.Errorf("next version number: %w", err)
	}

	if v.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE framework_versions SET is_default = FALSE WHERE framework_id = $1 AND is_default`,
			frameworkID,
		); err != nil {
			return nil, fmt.Errorf("clear default version: %w", err)
		}
	}

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO framework_versions (id, framework_id, number, config, is_default)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		v.ID, frameworkID, v.Number, cfg, v.IsDefault,
	).Scan(&v.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	for _, b := range v.Bindings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_bindings
			   (version_id, question_key, required, display_order, label, options, alias, transform)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			v.ID, b.Question, b.Required, b.Order, b.Label, jsonList(b.Options), b.Alias, b.Transform,
		); err != nil {
			return nil, fmt.Errorf("insert binding %s: %w", b.Question, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit version: %w", err)
	}
	return &v, nil
}

const versionSelect = `SELECT v.id, f.code, v.number, v.config, v.is_default, v.created_at
	 FROM framework_versions v JOIN frameworks f ON f.id = v.framework_id`

func (s *PostgresStore) scanVersion(ctx context.Context, row rowScanner) (*Version, error) {
	v := &Version{}
	var cfg []byte
	if err := row.Scan(&v.ID, &v.FrameworkCode, &v.Number, &cfg, &v.IsDefault, &v.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &v.Config); err != nil {
		return nil, fmt.Errorf("decode config of version %s: %w", v.ID, err)
	}
	bindings, err := s.loadBindings(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	v.Bindings = bindings
	return v, nil
}

func (s *PostgresStore) loadBindings(ctx context.Context, versionID string) ([]questionnaire.Binding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_key, required, display_order, label, options, alias, transform
		 FROM question_bindings WHERE version_id = $1 ORDER BY display_order`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load bindings of %s: %w", versionID, err)
	}
	defer rows.Close()

	bindings := []questionnaire.Binding{}
	for rows.Next() {
		var b questionnaire.Binding
		var options []byte
		if err := rows.Scan(&b.Question, &b.Required, &b.Order, &b.Label, &options, &b.Alias, &b.Transform); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		if err := json.Unmarshal(options, &b.Options); err != nil {
			return nil, fmt.Errorf("decode binding options: %w", err)
		}
		if len(b.Options) == 0 {
			b.Options = nil
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// GetVersion returns a version by id.
func (s *PostgresStore) GetVersion(ctx context.Context, id string) (*Version, error) {
	v, err := s.scanVersion(ctx, s.db.QueryRowContext(ctx, versionSelect+` WHERE v.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", id, ErrVersionNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
		// not a uuid
		return nil, fmt.Errorf("version %s: %w", id, ErrVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}

// ActiveVersion returns the default version of a framework.
func (s *PostgresStore) ActiveVersion(ctx context.Context, frameworkCode string) (*Version, error) {
	v, err := s.scanVersion(ctx, s.db.QueryRowContext(ctx,
		versionSelect+` WHERE f.code = $1 AND v.is_default`, frameworkCode))
	if errors.Is(err, sql.ErrNoRows) {
		if _, ferr := s.GetFramework(ctx, frameworkCode); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("framework %s: %w", frameworkCode, ErrNoActiveVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("get active version of %s: %w", frameworkCode, err)
	}
	return v, nil
}

// ListVersions returns every version of a framework, oldest first.
func (s *PostgresStore) ListVersions(ctx context.Context, frameworkCode string) ([]Version, error) {
	if _, err := s.GetFramework(ctx, frameworkCode); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, versionSelect+` WHERE f.code = $1 ORDER BY v.number`, frameworkCode)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", frameworkCode, err)
	}
	defer rows.Close()

	// Bindings load per row, so collect the rows first.
	type raw struct {
		v   Version
		cfg []byte
	}
	var raws []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.v.ID, &r.v.FrameworkCode, &r.v.Number, &r.cfg, &r.v.IsDefault, &r.v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Version, 0, len(raws))
	for _, r := range raws {
		if err := json.Unmarshal(r.cfg, &r.v.Config); err != nil {
			return nil, fmt.Errorf("decode config of version %s: %w", r.v.ID, err)
		}
		bindings, err := s.loadBindings(ctx, r.v.ID)
		if err != nil {
			return nil, err
		}
		r.v.Bindings = bindings
		out = append(out, r.v)
	}
	return out, nil
}

// ActivateVersion makes version number the framework default. The clear and
// the set run in one transaction under the framework row lock.
func (s *PostgresStore) ActivateVersion(ctx context.Context, frameworkCode string, number int) (*Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	frameworkID, err := lockFramework(ctx, tx, frameworkCode)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE framework_versions SET is_default = FALSE WHERE framework_id = $1 AND is_default`,
		frameworkID,
	); err != nil {
		return nil, fmt.Errorf("clear default version: %w", err)
	}
	var id string
	err = tx.QueryRowContext(ctx,
		`UPDATE framework_versions SET is_default = TRUE
		 WHERE framework_id = $1 AND number = $2
		 RETURNING id`,
		frameworkID, number,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s version %d: %w", frameworkCode, number, ErrVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set default version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activation: %w", err)
	}
	return s.GetVersion(ctx, id)
}
