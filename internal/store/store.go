// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"assessment-workers/internal/common/logger"
	"assessment-workers/internal/models"
)

// Notifier receives the creation event for every durably written queue item.
// The dispatch trigger implements it; tests substitute a recorder.
type Notifier interface {
	QueueItemCreated(ctx context.Context, itemID string) error
}

// Store owns all Postgres access for assessments and the email queue. It is
// constructed with an explicit *sql.DB handle; there is no package-level
// connection state.
type Store struct {
	db       *sql.DB
	notifier Notifier
	logger   logger.Logger
}

func New(db *sql.DB, notifier Notifier, log logger.Logger) *Store {
	return &Store{
		db:       db,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// CreateAssessment persists the result document. The caller gets an id back
// as soon as the row is durable, independent of any notification work.
func (s *Store) CreateAssessment(ctx context.Context, a models.Assessment, r models.ScoreResult) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assessments
			(id, company_name, industry, team_size, email, tech_stack, challenges,
			 budget, timeline, score, level, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, a.CompanyName, a.Industry, a.TeamSize, a.Email,
		pq.Array(a.TechStack), pq.Array(a.Challenges),
		a.Budget, a.Timeline, r.Score, r.Level, r.Color, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert assessment: %w", err)
	}

	return id, nil
}

// GetAssessment reads a stored result document.
func (s *Store) GetAssessment(ctx context.Context, id string) (*models.AssessmentRecord, error) {
	var rec models.AssessmentRecord
	var techStack, challenges []string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_name, industry, team_size, email, tech_stack, challenges,
		       budget, timeline, score, level, color, created_at
		FROM assessments WHERE id = $1`, id).Scan(
		&rec.ID, &rec.Assessment.CompanyName, &rec.Assessment.Industry,
		&rec.Assessment.TeamSize, &rec.Assessment.Email,
		pq.Array(&techStack), pq.Array(&challenges),
		&rec.Assessment.Budget, &rec.Assessment.Timeline,
		&rec.Result.Score, &rec.Result.Level, &rec.Result.Color, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Assessment.TechStack = techStack
	rec.Assessment.Challenges = challenges
	return &rec, nil
}

// CreateQueueItem durably writes a pending queue item and fires the creation
// event that triggers the dispatch worker. A notification failure is logged
// but does not fail the create: the recovery sweep re-delivers stale pending
// items, so the event channel only needs to be at-least-once overall.
func (s *Store) CreateQueueItem(ctx context.Context, payload models.EmailPayload) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_queue_items
			(id, user_email, operator_email, subject, html_body, company_name,
			 industry, team_size, budget, timeline, score, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, payload.UserEmail, payload.OperatorEmail, payload.Subject,
		payload.HTMLBody, payload.CompanyName, payload.Industry,
		payload.TeamSize, payload.Budget, payload.Timeline, payload.Score,
		models.StatusPending, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert queue item: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.QueueItemCreated(ctx, id); err != nil {
			s.logger.Error("queue item creation event not delivered", map[string]interface{}{
				"itemId": id,
				"error":  err,
			})
		}
	}

	return id, nil
}

// GetQueueItem reads an item with its full immutable payload.
func (s *Store) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	var item models.QueueItem
	var errMsg sql.NullString
	var sentAt, failedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_email, operator_email, subject, html_body, company_name,
		       industry, team_size, budget, timeline, score, status, error,
		       created_at, sent_at, failed_at
		FROM email_queue_items WHERE id = $1`, id).Scan(
		&item.ID, &item.Payload.UserEmail, &item.Payload.OperatorEmail,
		&item.Payload.Subject, &item.Payload.HTMLBody, &item.Payload.CompanyName,
		&item.Payload.Industry, &item.Payload.TeamSize, &item.Payload.Budget,
		&item.Payload.Timeline, &item.Payload.Score, &item.Status, &errMsg,
		&item.CreatedAt, &sentAt, &failedAt,
	)
	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		item.Error = &errMsg.String
	}
	if sentAt.Valid {
		t := sentAt.Time
		item.SentAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		item.FailedAt = &t
	}
	return &item, nil
}

// MarkQueueItemTerminal writes the single terminal transition. The update is
// conditional on the row still being pending, so a terminal status is never
// overwritten even when two invocations race past the read guard. Returns
// false when another writer already claimed the transition.
func (s *Store) MarkQueueItemTerminal(ctx context.Context, id, status string, errMsg *string) (bool, error) {
	if status != models.StatusSent && status != models.StatusFailed {
		return false, fmt.Errorf("invalid terminal status: %s", status)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_queue_items
		SET status = $2,
		    error = $3,
		    sent_at = CASE WHEN $2 = 'sent' THEN $4 ELSE sent_at END,
		    failed_at = CASE WHEN $2 = 'failed' THEN $4 ELSE failed_at END
		WHERE id = $1 AND status = 'pending'`,
		id, status, errMsg, now,
	)
	if err != nil {
		return false, fmt.Errorf("update queue item status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListStalePendingIDs returns pending items older than the cutoff so the
// recovery sweep can re-enqueue creation events lost in transit.
func (s *Store) ListStalePendingIDs(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM email_queue_items
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
