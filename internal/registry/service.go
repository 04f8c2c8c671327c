package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/riskframe/riskframe/internal/cache"
	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/internal/schema"
	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

var tracer = otel.Tracer("github.com/riskframe/riskframe/internal/registry")

var codePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// DefaultEngine is the engine name recorded on frameworks that do not set one.
const DefaultEngine = "three-pillar"

// Prepared is a version ready for scoring: its resolved questions and the
// engine compiled from its configuration. Prepared values are shared between
// callers and must not be modified. Version.IsDefault is not tracked and is
// always false.
type Prepared struct {
	Version   *Version
	Questions []questionnaire.ResolvedQuestion
	Engine    *scoring.Engine
}

// Service is the registry's API over a Store.
type Service struct {
	store     Store
	validator *schema.Validator
	shared    cache.Cache
	prepared  *cache.LRU[*Prepared]
	log       *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache shares resolved versions through c (for example Redis).
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.shared = c }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithPreparedCacheSize bounds the in-process cache of compiled versions.
func WithPreparedCacheSize(n int) Option {
	return func(s *Service) { s.prepared = cache.NewLRU[*Prepared](n) }
}

// NewService creates a registry Service.
func NewService(store Store, validator *schema.Validator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: validator,
		prepared:  cache.NewLRU[*Prepared](64),
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func rejected(err error) error {
	return fmt.Errorf("%w: %w", ErrConfigRejected, err)
}

// CreateQuestion adds an active question to the catalog.
func (s *Service) CreateQuestion(ctx context.Context, q questionnaire.Question) (*questionnaire.Question, error) {
	if err := s.validator.ValidateQuestion(q); err != nil {
		return nil, rejected(err)
	}
	q.Active = true
	out, err := s.store.CreateQuestion(ctx, q)
	if err != nil {
		return nil, err
	}
	s.log.Info("question created", "key", q.Key, "type", string(q.Type))
	return out, nil
}

// UpdateQuestion rewrites a question no published version binds yet.
func (s *Service) UpdateQuestion(ctx context.Context, q questionnaire.Question) (*questionnaire.Question, error) {
	if err := s.validator.ValidateQuestion(q); err != nil {
		return nil, rejected(err)
	}
	out, err := s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return nil, err
	}
	s.log.Info("question updated", "key", q.Key)
	return out, nil
}

// DeactivateQuestion soft-deletes a question. Published versions that bind
// it keep resolving it; new versions may not bind it.
func (s *Service) DeactivateQuestion(ctx context.Context, key string) error {
	if err := s.store.SetQuestionActive(ctx, key, false); err != nil {
		return err
	}
	s.log.Info("question deactivated", "key", key)
	return nil
}

// ListQuestions returns the catalog.
func (s *Service) ListQuestions(ctx context.Context) ([]questionnaire.Question, error) {
	return s.store.ListQuestions(ctx)
}

// CreateFramework registers a framework.
func (s *Service) CreateFramework(ctx context.Context, f Framework) (*Framework, error) {
	if !codePattern.MatchString(f.Code) {
		return nil, rejected(fmt.Errorf("framework code %q must match %s", f.Code, codePattern))
	}
	if f.Name == "" {
		f.Name = f.Code
	}
	if f.Engine == "" {
		f.Engine = DefaultEngine
	}
	f.ID = uuid.NewString()
	f.Active = true
	out, err := s.store.CreateFramework(ctx, f)
	if err != nil {
		return nil, err
	}
	s.log.Info("framework created", "code", f.Code, "engine", f.Engine)
	return out, nil
}

// GetFramework returns a framework by code.
func (s *Service) GetFramework(ctx context.Context, code string) (*Framework, error) {
	return s.store.GetFramework(ctx, code)
}

// ListFrameworks returns all frameworks.
func (s *Service) ListFrameworks(ctx context.Context) ([]Framework, error) {
	return s.store.ListFrameworks(ctx)
}

// PublishRequest describes a new framework version.
type PublishRequest struct {
	FrameworkCode string                  `json:"framework_code" yaml:"framework"`
	Config        scoring.Config          `json:"config" yaml:"config"`
	Bindings      []questionnaire.Binding `json:"bindings" yaml:"bindings"`
	Activate      bool                    `json:"activate" yaml:"activate"`
}

// CheckVersion runs every publish-time check without storing anything and
// returns the compiled engine.
func (s *Service) CheckVersion(ctx context.Context, cfg scoring.Config, bindings []questionnaire.Binding) (*scoring.Engine, error) {
	if err := s.validator.ValidateVersion(cfg, bindings); err != nil {
		return nil, rejected(err)
	}

	keys := make([]string, 0, len(bindings))
	for _, b := range bindings {
		keys = append(keys, b.Question)
	}
	questions, err := s.store.GetQuestions(ctx, keys)
	if err != nil {
		return nil, err
	}
	lookup := questionnaire.LookupFrom(questions)
	if err := questionnaire.ValidateBindings(bindings, lookup); err != nil {
		return nil, rejected(err)
	}
	resolved, err := questionnaire.Resolve(bindings, lookup)
	if err != nil {
		return nil, rejected(err)
	}
	engine, err := scoring.Compile(cfg, questionnaire.Catalog(resolved))
	if err != nil {
		return nil, rejected(err)
	}
	return engine, nil
}

// PublishVersion validates and stores a new immutable version, optionally
// making it the framework's active version in the same write.
func (s *Service) PublishVersion(ctx context.Context, req PublishRequest) (*Version, error) {
	ctx, span := tracer.Start(ctx, "registry.publish_version")
	defer span.End()
	span.SetAttributes(attribute.String("framework", req.FrameworkCode))

	if _, err := s.store.GetFramework(ctx, req.FrameworkCode); err != nil {
		return nil, err
	}
	if _, err := s.CheckVersion(ctx, req.Config, req.Bindings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "configuration rejected")
		s.log.Warn("version rejected", "framework", req.FrameworkCode, "error", err)
		return nil, err
	}

	v, err := s.store.CreateVersion(ctx, Version{
		ID:            uuid.NewString(),
		FrameworkCode: req.FrameworkCode,
		Config:        req.Config,
		Bindings:      req.Bindings,
		IsDefault:     req.Activate,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("version_id", v.ID), attribute.Int("version_number", v.Number))
	s.log.Info("version published",
		"framework", v.FrameworkCode, "version_id", v.ID, "number", v.Number, "active", v.IsDefault)
	return v, nil
}

// ActiveVersion returns the framework's current default version.
func (s *Service) ActiveVersion(ctx context.Context, frameworkCode string) (*Version, error) {
	return s.store.ActiveVersion(ctx, frameworkCode)
}

// GetVersion returns a version by id.
func (s *Service) GetVersion(ctx context.Context, id string) (*Version, error) {
	return s.store.GetVersion(ctx, id)
}

// ListVersions returns a framework's versions, oldest first.
func (s *Service) ListVersions(ctx context.Context, frameworkCode string) ([]Version, error) {
	return s.store.ListVersions(ctx, frameworkCode)
}

// ActivateVersion flips the framework's active version.
func (s *Service) ActivateVersion(ctx context.Context, frameworkCode string, number int) (*Version, error) {
	v, err := s.store.ActivateVersion(ctx, frameworkCode, number)
	if err != nil {
		return nil, err
	}
	s.log.Info("version activated", "framework", frameworkCode, "version_id", v.ID, "number", number)
	return v, nil
}

// ResolveQuestions returns the ordered questions of a version. A version with
// no bindings yields an empty list; it resolves without being compiled.
func (s *Service) ResolveQuestions(ctx context.Context, versionID string) ([]questionnaire.ResolvedQuestion, error) {
	if p, ok := s.prepared.Get(versionID); ok {
		return p.Questions, nil
	}
	doc, err := s.loadPrepared(ctx, versionID)
	if err != nil {
		if errors.Is(err, scoring.ErrIntegrity) {
			s.log.Error("version failed to resolve", "version_id", versionID, "error", err)
		}
		return nil, err
	}
	return doc.Questions, nil
}

type preparedDoc struct {
	Version   *Version                         `json:"version"`
	Questions []questionnaire.ResolvedQuestion `json:"questions"`
}

func sharedKey(versionID string) string {
	return "version:" + versionID
}

// Prepare loads, resolves and compiles a version. Versions are immutable, so
// results are cached without invalidation. A stored version that no longer
// resolves or compiles is reported as scoring.ErrIntegrity.
func (s *Service) Prepare(ctx context.Context, versionID string) (*Prepared, error) {
	if p, ok := s.prepared.Get(versionID); ok {
		return p, nil
	}

	ctx, span := tracer.Start(ctx, "registry.prepare")
	defer span.End()
	span.SetAttributes(attribute.String("version_id", versionID))

	doc, err := s.loadPrepared(ctx, versionID)
	if err != nil {
		if errors.Is(err, scoring.ErrIntegrity) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "integrity failure")
			s.log.Error("version failed to resolve", "version_id", versionID, "error", err)
		}
		return nil, err
	}

	engine, err := scoring.Compile(doc.Version.Config, questionnaire.Catalog(doc.Questions))
	if err != nil {
		err = fmt.Errorf("%w: published version %s no longer compiles: %v", scoring.ErrIntegrity, versionID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "integrity failure")
		s.log.Error("version failed to compile", "version_id", versionID, "error", err)
		return nil, err
	}

	p := &Prepared{Version: doc.Version, Questions: doc.Questions, Engine: engine}
	s.prepared.Put(versionID, p)
	return p, nil
}

func (s *Service) loadPrepared(ctx context.Context, versionID string) (*preparedDoc, error) {
	if s.shared != nil {
		b, ok, err := s.shared.Get(ctx, sharedKey(versionID))
		if err != nil {
			s.log.Warn("shared cache read failed", "version_id", versionID, "error", err)
		}
		if ok {
			var doc preparedDoc
			if err := json.Unmarshal(b, &doc); err == nil && doc.Version != nil {
				return &doc, nil
			}
			s.log.Warn("discarding undecodable cache entry", "version_id", versionID)
		}
	}

	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(v.Bindings))
	for _, b := range v.Bindings {
		keys = append(keys, b.Question)
	}
	questions, err := s.store.GetQuestions(ctx, keys)
	if err != nil {
		return nil, err
	}
	resolved, err := questionnaire.Resolve(v.Bindings, questionnaire.LookupFrom(questions))
	if err != nil {
		return nil, err
	}
	v.IsDefault = false
	doc := &preparedDoc{Version: v, Questions: resolved}

	if s.shared != nil {
		b, err := json.Marshal(doc)
		if err == nil {
			err = s.shared.Set(ctx, sharedKey(versionID), b)
		}
		if err != nil {
			s.log.Warn("shared cache write failed", "version_id", versionID, "error", err)
		}
	}
	return doc, nil
}
