package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/riskframe/riskframe/internal/submission"
	"github.com/riskframe/riskframe/pkg/scoring"
)

type rescoreResponse struct {
	SubmissionID string          `json:"submission_id"`
	Match        bool            `json:"match"`
	Stored       *scoring.Result `json:"stored"`
	Result       *scoring.Result `json:"result"`
	// PersistedID is set when ?persist=true stored the new result.
	PersistedID string `json:"persisted_id,omitempty"`
}

// handleRescore re-runs the engine on one stored submission. With
// ?persist=true the recomputed result is stored as a new submission; the
// original is never modified.
func (h *Handler) handleRescore(w http.ResponseWriter, r *http.Request) {
	persist := false
	if v := r.URL.Query().Get("persist"); v != "" {
		p, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "persist must be a boolean")
			return
		}
		persist = p
	}

	id := chi.URLParam(r, "submissionID")
	report, err := h.submissions.ReScore(r.Context(), id, submission.RescoreOptions{Persist: persist})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := rescoreResponse{
		SubmissionID: id,
		Match:        report.Match,
		Stored:       report.Original.Result,
		Result:       report.Result,
	}
	if report.Persisted != nil {
		resp.PersistedID = report.Persisted.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
