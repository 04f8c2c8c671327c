package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riskframe/riskframe/internal/submission"
	"github.com/riskframe/riskframe/pkg/scoring"
)

type submitRequest struct {
	SubjectRef string         `json:"subject_ref"`
	Answers    map[string]any `json:"answers"`
}

// submitResponse is the scoring outcome of a new submission. The frozen
// snapshot stays behind GET /submissions/{id}.
type submitResponse struct {
	SubmissionID string                  `json:"submission_id"`
	VersionID    string                  `json:"version_id"`
	PillarScores map[string]float64      `json:"pillar_scores"`
	Decision     float64                 `json:"decision"`
	Bucket       string                  `json:"bucket"`
	Warnings     []string                `json:"warnings"`
	Unscored     []scoring.UnscoredInput `json:"unscored,omitempty"`
	SubmittedAt  time.Time               `json:"submitted_at"`
}

func newSubmitResponse(sub *submission.Submission) submitResponse {
	resp := submitResponse{
		SubmissionID: sub.ID,
		VersionID:    sub.VersionID,
		SubmittedAt:  sub.SubmittedAt,
		Warnings:     []string{},
	}
	if sub.Result != nil {
		resp.PillarScores = sub.Result.PillarScores
		resp.Decision = sub.Result.Decision
		resp.Bucket = sub.Result.Bucket
		resp.Unscored = sub.Result.Unscored
		if sub.Result.Warnings != nil {
			resp.Warnings = sub.Result.Warnings
		}
	}
	return resp
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := h.submissions.Submit(r.Context(), submission.SubmitRequest{
		VersionID:  chi.URLParam(r, "versionID"),
		SubjectRef: req.SubjectRef,
		Answers:    req.Answers,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSubmitResponse(sub))
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submissions.Get(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
