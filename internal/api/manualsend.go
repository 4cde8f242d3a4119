// internal/api/manualsend.go
package api

import (
	"encoding/json"
	"net/http"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"

	stderrors "assessment-workers/internal/common/errors"
	"assessment-workers/internal/common/metrics"
)

type manualSendRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
}

type manualSendResponse struct {
	Success   bool   `json:"success"`
	Recipient string `json:"recipient"`
}

// handleManualSend performs a single synchronous send. Nothing is persisted
// and no operator copy goes out; this endpoint bypasses the queue entirely.
func (s *Server) handleManualSend(w http.ResponseWriter, r *http.Request) {
	var req manualSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ManualSendsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, stderrors.NewValidationError("invalid JSON payload"))
		return
	}
	if req.To == "" || req.Subject == "" || req.HTMLBody == "" {
		metrics.ManualSendsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, stderrors.NewValidationError("to, subject and htmlBody are required"))
		return
	}

	_, err := s.ses.SendEmail(r.Context(), &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{req.To},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(req.Subject)},
			Body: &sestypes.Body{
				Html: &sestypes.Content{Data: awssdk.String(req.HTMLBody)},
			},
		},
		Source: awssdk.String(s.cfg.FromEmail),
	})
	if err != nil {
		metrics.ManualSendsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("manual send failed", map[string]interface{}{
			"recipient": req.To,
			"error":     err,
		})
		// Transport errors surface as plain "internal" on this endpoint.
		s.respondError(w, stderrors.NewInternalError(err))
		return
	}

	metrics.ManualSendsTotal.WithLabelValues("sent").Inc()
	s.respondJSON(w, http.StatusOK, manualSendResponse{
		Success:   true,
		Recipient: req.To,
	})
}
