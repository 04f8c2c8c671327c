// Package api implements the riskframe REST API over the registry and
// submission services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/internal/schema"
	"github.com/riskframe/riskframe/internal/submission"
	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

// maxBodyBytes bounds request bodies; configurations are the largest payload.
const maxBodyBytes = 1 << 20

// Options configures the HTTP layer.
type Options struct {
	// APIKey protects administrative routes. Empty disables the check.
	APIKey         string
	RequestTimeout time.Duration
	CORSOrigins    []string
	Logger         *logger.Logger
	// HealthCheck backs /healthz when set, e.g. a database ping.
	HealthCheck func(ctx context.Context) error
}

// Handler is the top-level API handler.
type Handler struct {
	registry    *registry.Service
	submissions *submission.Service
	opts        Options
	log         *logger.Logger
	router      chi.Router
}

// NewHandler creates a new API handler.
func NewHandler(reg *registry.Service, subs *submission.Service, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	h := &Handler{
		registry:    reg,
		submissions: subs,
		opts:        opts,
		log:         opts.Logger,
	}
	h.router = h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Respondent-facing reads and writes.
		r.Get("/frameworks", h.handleListFrameworks)
		r.Get("/frameworks/{code}/active", h.handleActiveVersion)
		r.Get("/versions/{versionID}", h.handleGetVersion)
		r.Get("/versions/{versionID}/questions", h.handleResolvedQuestions)
		r.Post("/versions/{versionID}/submissions", h.handleSubmit)
		r.Get("/submissions/{submissionID}", h.handleGetSubmission)

		// Administration.
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(h.opts.APIKey))

			r.Get("/questions", h.handleListQuestions)
			r.Post("/questions", h.handleCreateQuestion)
			r.Put("/questions/{key}", h.handleUpdateQuestion)
			r.Post("/questions/{key}/deactivate", h.handleDeactivateQuestion)

			r.Post("/frameworks", h.handleCreateFramework)
			r.Get("/frameworks/{code}/versions", h.handleListVersions)
			r.Post("/frameworks/{code}/versions", h.handlePublishVersion)
			r.Post("/frameworks/{code}/versions/{number}/activate", h.handleActivateVersion)

			r.Post("/submissions/{submissionID}/rescore", h.handleRescore)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.opts.HealthCheck != nil {
		if err := h.opts.HealthCheck(r.Context()); err != nil {
			h.log.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

type errorBody struct {
	Error    string `json:"error"`
	Problems any    `json:"problems,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP statuses. Validation
// problems are returned as a list so clients can highlight every field.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *questionnaire.ValidationError
		cerr   *scoring.ConfigError
		serr   *schema.Error
		berr   *questionnaire.BindingError
		status int
		body   = errorBody{Error: err.Error()}
	)
	switch {
	case errors.As(err, &verr):
		status, body.Problems = http.StatusUnprocessableEntity, verr.Problems
	case errors.Is(err, registry.ErrConfigRejected):
		status = http.StatusUnprocessableEntity
		switch {
		case errors.As(err, &cerr):
			body.Problems = cerr.Problems
		case errors.As(err, &serr):
			body.Problems = serr.Problems
		case errors.As(err, &berr):
			body.Problems = berr.Problems
		}
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, registry.ErrVersionNotFound),
		errors.Is(err, registry.ErrNoActiveVersion),
		errors.Is(err, submission.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrConflict),
		errors.Is(err, registry.ErrQuestionReferenced):
		status = http.StatusConflict
	case errors.Is(err, scoring.ErrIntegrity):
		status = http.StatusInternalServerError
		h.log.Error("integrity failure",
			"path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		body.Error = "internal integrity failure"
	default:
		status = http.StatusInternalServerError
		h.log.Error("request failed",
			"path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}
