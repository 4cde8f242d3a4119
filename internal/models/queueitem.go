// internal/models/queueitem.go
package models

import "time"

// Queue item statuses. Sent and failed are terminal and absorbing: once a
// row reaches either, no writer overwrites it.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// EmailPayload is the fixed, typed payload of a queue item. It carries the
// user-facing message verbatim plus the assessment fields the operator
// notification is synthesized from. The payload is immutable after creation.
type EmailPayload struct {
	UserEmail     string `json:"userEmail"`
	OperatorEmail string `json:"operatorEmail"`
	Subject       string `json:"subject"`
	HTMLBody      string `json:"htmlBody"`
	CompanyName   string `json:"companyName"`
	Industry      string `json:"industry"`
	TeamSize      int    `json:"teamSize"`
	Budget        string `json:"budget"`
	Timeline      string `json:"timeline"`
	Score         int    `json:"score"`
}

// QueueItem is one pending email-dispatch obligation. The submission path
// owns creation; the dispatch worker owns the single terminal mutation.
type QueueItem struct {
	ID        string       `json:"id"`
	Payload   EmailPayload `json:"payload"`
	Status    string       `json:"status"`
	Error     *string      `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	SentAt    *time.Time   `json:"sentAt,omitempty"`
	FailedAt  *time.Time   `json:"failedAt,omitempty"`
}

// Terminal reports whether the item has reached an absorbing status.
func (q *QueueItem) Terminal() bool {
	return q.Status == StatusSent || q.Status == StatusFailed
}
