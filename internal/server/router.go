// Package server exposes scoring and the intake workflow over HTTP.
package server

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/dshills/valoracion/internal/intake"
)

// Container holds all dependencies for the router.
type Container struct {
	Intake *intake.Service
	Logger *log.Logger
}

// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	logger := c.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &handler{svc: c.Intake, engine: c.Intake.Engine(), logger: logger}

	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/score", h.score).Methods("POST", "OPTIONS")
	v1.HandleFunc("/assessments", h.createAssessment).Methods("POST", "OPTIONS")
	v1.HandleFunc("/assessments", h.listAssessments).Methods("GET", "OPTIONS")
	v1.HandleFunc("/assessments/{id}", h.getAssessment).Methods("GET", "OPTIONS")
	v1.HandleFunc("/assessments/{id}/document", h.assessmentDocument).Methods("GET", "OPTIONS")
	v1.HandleFunc("/recommendations/{level}", h.recommendations).Methods("GET", "OPTIONS")
	v1.HandleFunc("/reports/levels", h.levelReport).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
		})
	}
}
