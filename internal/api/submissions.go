// internal/api/submissions.go
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	stderrors "assessment-workers/internal/common/errors"
	"assessment-workers/internal/common/metrics"
	"assessment-workers/internal/common/validation"
	"assessment-workers/internal/models"
)

// submissionSchema validates the wire payload before it is decoded into the
// typed Assessment. Unknown budget and timeline values are rejected here;
// the scoring engine itself tolerates them.
var submissionSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"companyName", "industry", "teamSize", "email", "budget", "timeline"},
	"properties": map[string]interface{}{
		"companyName": map[string]interface{}{"type": "string", "minLength": 1},
		"industry":    map[string]interface{}{"type": "string", "minLength": 1},
		"teamSize":    map[string]interface{}{"type": "integer", "minimum": 1},
		"email":       map[string]interface{}{"type": "string", "format": "email"},
		"techStack": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"challenges": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"budget": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{
				models.BudgetUnder50K, models.Budget50K100K, models.Budget100K250K,
				models.Budget250K500K, models.BudgetAbove500K,
			},
		},
		"timeline": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{
				models.TimelineLess3Months, models.Timeline3To6Months,
				models.Timeline6To12Months, models.TimelineAbove12Month,
			},
		},
	},
}

type submissionResponse struct {
	AssessmentID string `json:"assessmentId"`
	Score        int    `json:"score"`
	Level        string `json:"level"`
	Color        string `json:"color"`
}

func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, stderrors.NewValidationError("invalid JSON payload"))
		return
	}

	result, err := validation.ValidateDocument(submissionSchema, raw)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		s.respondError(w, stderrors.NewInternalError(err))
		return
	}
	if !result.Valid {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, stderrors.NewValidationError(result.Summary()))
		return
	}

	var assessment models.Assessment
	buf, _ := json.Marshal(raw)
	if err := json.Unmarshal(buf, &assessment); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, stderrors.NewValidationError(err.Error()))
		return
	}

	scoreResult := s.engine.ComputeResult(assessment)

	id, err := s.store.CreateAssessment(r.Context(), assessment, scoreResult)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		s.logger.Error("assessment insert failed", map[string]interface{}{"error": err})
		s.respondError(w, stderrors.NewDatabaseInsertFailedError(err))
		return
	}

	// The result document is durable; the submission succeeds from here on.
	// Queueing the notification emails is observable-but-non-gating: a
	// failure lands in the logs and counters, never in the 201.
	subject, htmlBody := buildUserEmail(assessment.CompanyName, scoreResult)
	if _, err := s.store.CreateQueueItem(r.Context(), models.EmailPayload{
		UserEmail:     assessment.Email,
		OperatorEmail: s.cfg.OperatorEmail,
		Subject:       subject,
		HTMLBody:      htmlBody,
		CompanyName:   assessment.CompanyName,
		Industry:      assessment.Industry,
		TeamSize:      assessment.TeamSize,
		Budget:        assessment.Budget,
		Timeline:      assessment.Timeline,
		Score:         scoreResult.Score,
	}); err != nil {
		s.logger.Error("queue item creation failed after assessment write", map[string]interface{}{
			"assessmentId": id,
			"error":        err,
		})
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	s.respondJSON(w, http.StatusCreated, submissionResponse{
		AssessmentID: id,
		Score:        scoreResult.Score,
		Level:        scoreResult.Level,
		Color:        scoreResult.Color,
	})
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetAssessment(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, stderrors.NewAssessmentNotFoundError(id))
			return
		}
		s.logger.Error("assessment read failed", map[string]interface{}{
			"assessmentId": id,
			"error":        err,
		})
		s.respondError(w, stderrors.NewInternalError(err))
		return
	}

	s.respondJSON(w, http.StatusOK, rec)
}

// buildUserEmail renders the confirmation message sent back to the
// submitter.
func buildUserEmail(companyName string, r models.ScoreResult) (subject, htmlBody string) {
	subject = "Your AI Readiness Assessment Results"
	htmlBody = fmt.Sprintf(`
          <h2>Thank you for completing the AI Readiness Assessment</h2>
          <p>Hi %s,</p>
          <p>Your AI readiness score is
            <strong style="color:%s">%d/100 (%s)</strong>.</p>
          <p>Our team will review your submission and reach out with
            tailored next steps.</p>
        `, companyName, r.Color, r.Score, r.Level)
	return subject, htmlBody
}
