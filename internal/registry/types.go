// Package registry manages the question catalog, frameworks and their
// immutable versions, and prepares versions for scoring.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrVersionNotFound    = errors.New("framework version not found")
	ErrNoActiveVersion    = errors.New("framework has no active version")
	ErrConflict           = errors.New("already exists")
	ErrConfigRejected     = errors.New("configuration rejected")
	ErrQuestionReferenced = errors.New("question is bound to a published version")
)

// Framework is a named scoring framework. It owns versions.
type Framework struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Engine    string    `json:"engine"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Version is a published, immutable scoring configuration plus its question
// bindings. Only IsDefault ever changes after publish.
type Version struct {
	ID            string                  `json:"id"`
	FrameworkCode string                  `json:"framework_code"`
	Number        int                     `json:"number"`
	Config        scoring.Config          `json:"config"`
	Bindings      []questionnaire.Binding `json:"bindings"`
	IsDefault     bool                    `json:"is_default"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Store persists registry state. Implementations must make CreateVersion
// and ActivateVersion atomic: at most one version per framework is default
// at any instant.
type Store interface {
	CreateQuestion(ctx context.Context, q questionnaire.Question) (*questionnaire.Question, error)
	// UpdateQuestion replaces a question definition unless a version binds
	// it, in which case it returns ErrQuestionReferenced.
	UpdateQuestion(ctx context.Context, q questionnaire.Question) (*questionnaire.Question, error)
	SetQuestionActive(ctx context.Context, key string, active bool) error
	GetQuestions(ctx context.Context, keys []string) ([]questionnaire.Question, error)
	ListQuestions(ctx context.Context) ([]questionnaire.Question, error)

	CreateFramework(ctx context.Context, f Framework) (*Framework, error)
	GetFramework(ctx context.Context, code string) (*Framework, error)
	ListFrameworks(ctx context.Context) ([]Framework, error)

	// CreateVersion assigns the next version number. When v.IsDefault is
	// set the previous default is cleared in the same transaction.
	CreateVersion(ctx context.Context, v Version) (*Version, error)
	GetVersion(ctx context.Context, id string) (*Version, error)
	ActiveVersion(ctx context.Context, frameworkCode string) (*Version, error)
	ListVersions(ctx context.Context, frameworkCode string) ([]Version, error)
	ActivateVersion(ctx context.Context, frameworkCode string, number int) (*Version, error)
}
