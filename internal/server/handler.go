package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dshills/valoracion/internal/intake"
	"github.com/dshills/valoracion/internal/render"
	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/store"
)

type handler struct {
	svc    *intake.Service
	engine *risk.Engine
	logger *log.Logger
}

// ScoreRequest is the request body for stateless scoring.
type ScoreRequest struct {
	Answers any `json:"answers"`
}

// ScoreResponse carries a result with its recommendations.
type ScoreResponse struct {
	Result          risk.Result `json:"result"`
	Recommendations []string    `json:"recommendations"`
	Ignored         []string    `json:"ignored"`
}

// AssessmentResponse wraps a stored assessment. Ignored is only set when
// the assessment was just submitted.
type AssessmentResponse struct {
	Assessment      *store.Assessment `json:"assessment"`
	Recommendations []string          `json:"recommendations"`
	Ignored         []string          `json:"ignored,omitempty"`
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// score handles POST /v1/score
func (h *handler) score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, ignored, err := h.engine.Evaluate(req.Answers)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, ScoreResponse{
		Result:          result,
		Recommendations: h.engine.RecommendationsFor(string(result.Level)),
		Ignored:         ignored,
	})
}

// createAssessment handles POST /v1/assessments
func (h *handler) createAssessment(w http.ResponseWriter, r *http.Request) {
	var sub intake.Submission
	if err := decode(r, &sub); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, ignored, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, AssessmentResponse{
		Assessment:      a,
		Recommendations: h.svc.Recommendations(a),
		Ignored:         ignored,
	})
}

// listAssessments handles GET /v1/assessments?level=&case=&limit=
func (h *handler) listAssessments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{
		Level:      risk.Level(q.Get("level")),
		CaseNumber: q.Get("case"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	list, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"assessments": list})
}

// getAssessment handles GET /v1/assessments/{id}
func (h *handler) getAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, AssessmentResponse{
		Assessment:      a,
		Recommendations: h.svc.Recommendations(a),
	})
}

// assessmentDocument handles GET /v1/assessments/{id}/document
func (h *handler) assessmentDocument(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	md := render.Markdown(render.FromAssessment(a, h.svc.Recommendations(a)))
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, md); err != nil {
		h.logger.Printf("write document: %v", err)
	}
}

// recommendations handles GET /v1/recommendations/{level}
func (h *handler) recommendations(w http.ResponseWriter, r *http.Request) {
	level := mux.Vars(r)["level"]
	h.writeJSON(w, http.StatusOK, map[string]any{
		"level":           level,
		"recommendations": h.engine.RecommendationsFor(level),
	})
}

// levelReport handles GET /v1/reports/levels
func (h *handler) levelReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, intake.ErrInvalidInput), errors.Is(err, risk.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Printf("error: %v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("write response: %v", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
