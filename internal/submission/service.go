package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

var tracer = otel.Tracer("github.com/riskframe/riskframe/internal/submission")

// Preparer loads a published version ready for scoring.
type Preparer interface {
	Prepare(ctx context.Context, versionID string) (*registry.Prepared, error)
}

// Service runs the resolve, normalize, score, persist pipeline.
type Service struct {
	versions Preparer
	store    Store
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a submission Service. A nil logger disables logging.
func NewService(versions Preparer, store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		versions: versions,
		store:    store,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitRequest is one set of raw answers for a framework version.
type SubmitRequest struct {
	VersionID  string         `json:"version_id"`
	SubjectRef string         `json:"subject_ref,omitempty"`
	Answers    map[string]any `json:"answers"`
}

// Submit scores the answers and stores the snapshot. Nothing is stored
// unless every step succeeds.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "submission.submit")
	defer span.End()
	span.SetAttributes(attribute.String("version_id", req.VersionID))

	p, err := s.versions.Prepare(ctx, req.VersionID)
	if err != nil {
		s.fail(span, "prepare version", req.VersionID, err)
		return nil, err
	}

	answers, err := questionnaire.Normalize(p.Questions, req.Answers)
	if err != nil {
		span.SetStatus(codes.Error, "invalid answers")
		s.log.Debug("answers rejected", "version_id", req.VersionID, "error", err)
		return nil, err
	}

	result, err := p.Engine.Score(answers)
	if err != nil {
		s.fail(span, "score", req.VersionID, err)
		return nil, err
	}

	raw := req.Answers
	if raw == nil {
		raw = map[string]any{}
	}
	sub := &Submission{
		ID:            uuid.NewString(),
		FrameworkCode: p.Version.FrameworkCode,
		VersionID:     p.Version.ID,
		VersionNumber: p.Version.Number,
		SubjectRef:    req.SubjectRef,
		Questions:     p.Questions,
		Config:        p.Version.Config,
		RawAnswers:    raw,
		Answers:       answers,
		Result:        result,
		EngineVersion: scoring.Version,
		SubmittedAt:   s.now(),
	}
	if err := s.store.Create(ctx, sub); err != nil {
		s.fail(span, "store submission", req.VersionID, err)
		return nil, fmt.Errorf("store submission: %w", err)
	}

	span.SetAttributes(attribute.String("submission_id", sub.ID), attribute.String("bucket", result.Bucket))
	s.log.Info("submission stored",
		"submission_id", sub.ID,
		"framework", sub.FrameworkCode,
		"version", sub.VersionNumber,
		"subject_ref", sub.SubjectRef,
		"bucket", result.Bucket,
		"warnings", len(result.Warnings),
		"unscored", len(result.Unscored),
	)
	return sub, nil
}

func (s *Service) fail(span trace.Span, step, versionID string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, step)
	if errors.Is(err, scoring.ErrIntegrity) {
		s.log.Error("integrity failure", "step", step, "version_id", versionID, "error", err)
	}
}

// Get returns a stored submission.
func (s *Service) Get(ctx context.Context, id string) (*Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return s.store.Get(ctx, id)
}

// RescoreOptions controls ReScore.
type RescoreOptions struct {
	// Persist stores the recomputed result as a new submission.
	Persist bool
}

// RescoreReport compares a stored result with a fresh evaluation of the
// same snapshot.
type RescoreReport struct {
	Original  *Submission     `json:"original"`
	Result    *scoring.Result `json:"result"`
	Match     bool            `json:"match"`
	Persisted *Submission     `json:"persisted,omitempty"`
}

// ReScore evaluates a stored submission again using only its frozen
// configuration, questions and answers. A mismatch means the current engine
// scores differently from the one that produced the stored result.
func (s *Service) ReScore(ctx context.Context, id string, opts RescoreOptions) (*RescoreReport, error) {
	ctx, span := tracer.Start(ctx, "submission.rescore")
	defer span.End()
	span.SetAttributes(attribute.String("submission_id", id))

	orig, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	engine, err := scoring.Compile(orig.Config, questionnaire.Catalog(orig.Questions))
	if err != nil {
		err = fmt.Errorf("%w: stored configuration of submission %s no longer compiles: %v", scoring.ErrIntegrity, id, err)
		s.fail(span, "compile", orig.VersionID, err)
		return nil, err
	}
	result, err := engine.Score(orig.Answers)
	if err != nil {
		s.fail(span, "score", orig.VersionID, err)
		return nil, err
	}

	report := &RescoreReport{Original: orig, Result: result, Match: result.Equal(orig.Result)}
	span.SetAttributes(attribute.Bool("match", report.Match))
	if report.Match {
		s.log.Info("rescore matched", "submission_id", id, "engine_version", scoring.Version)
	} else {
		stored := orig.Result
		if stored == nil {
			stored = &scoring.Result{}
		}
		s.log.Error("rescore mismatch",
			"submission_id", id,
			"stored_engine_version", orig.EngineVersion,
			"engine_version", scoring.Version,
			"stored_bucket", stored.Bucket,
			"bucket", result.Bucket,
			"stored_decision", stored.Decision,
			"decision", result.Decision,
		)
	}

	if opts.Persist {
		next := *orig
		next.ID = uuid.NewString()
		next.Result = result
		next.EngineVersion = scoring.Version
		next.RescoreOf = orig.ID
		next.SubmittedAt = s.now()
		if err := s.store.Create(ctx, &next); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("store rescored submission: %w", err)
		}
		report.Persisted = &next
		s.log.Info("rescore stored", "submission_id", next.ID, "rescore_of", id)
	}
	return report, nil
}
