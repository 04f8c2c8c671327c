package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/pkg/questionnaire"
)

func (h *Handler) handleListFrameworks(w http.ResponseWriter, r *http.Request) {
	frameworks, err := h.registry.ListFrameworks(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frameworks": frameworks})
}

type createFrameworkRequest struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Engine string `json:"engine"`
}

func (h *Handler) handleCreateFramework(w http.ResponseWriter, r *http.Request) {
	var req createFrameworkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := h.registry.CreateFramework(r.Context(), registry.Framework{Code: req.Code, Name: req.Name, Engine: req.Engine})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleActiveVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.registry.ActiveVersion(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.registry.GetVersion(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type questionsResponse struct {
	VersionID string                           `json:"version_id"`
	Questions []questionnaire.ResolvedQuestion `json:"questions"`
}

func (h *Handler) handleResolvedQuestions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "versionID")
	questions, err := h.registry.ResolveQuestions(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{VersionID: id, Questions: questions})
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.registry.ListVersions(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (h *Handler) handlePublishVersion(w http.ResponseWriter, r *http.Request) {
	var req registry.PublishRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.FrameworkCode = chi.URLParam(r, "code")
	v, err := h.registry.PublishVersion(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleActivateVersion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "version number must be a positive integer")
		return
	}
	v, err := h.registry.ActivateVersion(r.Context(), chi.URLParam(r, "code"), number)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
