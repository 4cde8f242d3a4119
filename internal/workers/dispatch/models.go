// internal/workers/dispatch/models.go
package dispatch

import (
	"fmt"

	"assessment-workers/internal/models"
)

const operatorSubjectSuffix = " - AI Readiness Assessment Submission"

// buildOperatorSubject derives the operator notification subject from the
// queue item's company name.
func buildOperatorSubject(companyName string) string {
	return "[ASSESSMENT] " + companyName + operatorSubjectSuffix
}

// buildOperatorBody synthesizes the operator notification from the payload's
// assessment fields.
func buildOperatorBody(p models.EmailPayload) string {
	return fmt.Sprintf(`
          <h2>New Assessment Submission</h2>
          <p><strong>Company:</strong> %s</p>
          <p><strong>User Email:</strong> %s</p>
          <p><strong>Industry:</strong> %s</p>
          <p><strong>Team Size:</strong> %d</p>
          <p><strong>Score:</strong> %d/100</p>
          <p><strong>Budget Range:</strong> %s</p>
          <p><strong>Timeline:</strong> %s</p>
          <hr>
          <p>Please review the full assessment details in the admin console.</p>
        `,
		p.CompanyName, p.UserEmail, p.Industry, p.TeamSize,
		p.Score, p.Budget, p.Timeline,
	)
}

// buildAlertMessage is the short SMS body for high-score submissions.
func buildAlertMessage(p models.EmailPayload) string {
	return fmt.Sprintf("High readiness lead: %s scored %d/100 (%s, team of %d)",
		p.CompanyName, p.Score, p.Industry, p.TeamSize)
}
