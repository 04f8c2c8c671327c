// Package submission scores answer sets against published framework versions
// and stores each outcome as a frozen snapshot.
package submission

import (
	"context"
	"errors"
	"time"

	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

var (
	// ErrNotFound is returned for unknown submission ids.
	ErrNotFound = errors.New("submission not found")
	// ErrExists is returned when a submission id is stored twice.
	ErrExists = errors.New("submission already exists")
)

// Submission is everything needed to reproduce a score: the questions as
// they were shown, the configuration that scored them, the answers before
// and after normalization, and the result. Stored submissions never change.
type Submission struct {
	ID            string                           `json:"id"`
	FrameworkCode string                           `json:"framework_code"`
	VersionID     string                           `json:"version_id"`
	VersionNumber int                              `json:"version_number"`
	SubjectRef    string                           `json:"subject_ref,omitempty"`
	Questions     []questionnaire.ResolvedQuestion `json:"questions"`
	Config        scoring.Config                   `json:"config"`
	RawAnswers    map[string]any                   `json:"raw_answers"`
	Answers       scoring.Answers                  `json:"answers"`
	Result        *scoring.Result                  `json:"result"`
	EngineVersion string                           `json:"engine_version"`
	RescoreOf     string                           `json:"rescore_of,omitempty"`
	SubmittedAt   time.Time                        `json:"submitted_at"`
}

// Store persists submissions. Create must write the whole snapshot in a
// single atomic operation and refuse to overwrite an existing id.
type Store interface {
	Create(ctx context.Context, s *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
}
