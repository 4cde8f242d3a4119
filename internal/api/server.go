// internal/api/server.go

// Package api exposes the HTTP surface: assessment submission, the manual
// send endpoint, operator read-back, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assessment-workers/internal/common/aws"
	stderrors "assessment-workers/internal/common/errors"
	"assessment-workers/internal/common/logger"
	"assessment-workers/internal/models"
	"assessment-workers/internal/scoring"
)

// Config carries the handler-level settings the server needs.
type Config struct {
	FromEmail     string
	OperatorEmail string
}

// AssessmentStore is the slice of the store the HTTP layer uses.
type AssessmentStore interface {
	CreateAssessment(ctx context.Context, a models.Assessment, r models.ScoreResult) (string, error)
	GetAssessment(ctx context.Context, id string) (*models.AssessmentRecord, error)
	CreateQueueItem(ctx context.Context, payload models.EmailPayload) (string, error)
}

// Server wires the HTTP handlers for the assessment API.
type Server struct {
	cfg    Config
	store  AssessmentStore
	engine *scoring.Engine
	ses    aws.SESAPI
	logger logger.Logger
}

func NewServer(cfg Config, store AssessmentStore, engine *scoring.Engine, sesClient aws.SESAPI, log logger.Logger) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		engine: engine,
		ses:    sesClient,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/assessments", s.handleSubmitAssessment)
		r.Get("/assessments/{id}", s.handleGetAssessment)
		r.Post("/email/send", s.handleManualSend)
	})

	return r
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", map[string]interface{}{"error": err})
	}
}

// respondError writes the wire-facing error shape {error:{kind, message}}.
func (s *Server) respondError(w http.ResponseWriter, stdErr *stderrors.StandardError) {
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    stderrors.Kind(stdErr.Code),
			"message": stdErr.Message,
		},
	}
	if stdErr.Details != "" {
		body["error"].(map[string]interface{})["details"] = stdErr.Details
	}
	s.respondJSON(w, stderrors.HTTPStatus(stdErr.Code), body)
}
