package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riskframe/riskframe/pkg/questionnaire"
)

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.registry.ListQuestions(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q questionnaire.Question
	if !decodeBody(w, r, &q) {
		return
	}
	out, err := h.registry.CreateQuestion(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var q questionnaire.Question
	if !decodeBody(w, r, &q) {
		return
	}
	q.Key = chi.URLParam(r, "key")
	out, err := h.registry.UpdateQuestion(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeactivateQuestion(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.registry.DeactivateQuestion(r.Context(), key); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated", "key": key})
}
