// internal/workers/dispatch/handler.go
package dispatch

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"assessment-workers/internal/common/aws"
	"assessment-workers/internal/common/logger"
	"assessment-workers/internal/common/metrics"
	"assessment-workers/internal/models"
)

const TaskType = "dispatch-email"

// QueueStore is the slice of the store the worker needs: one read for the
// idempotency guard and one conditional terminal write.
type QueueStore interface {
	GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error)
	MarkQueueItemTerminal(ctx context.Context, id, status string, errMsg *string) (bool, error)
}

// Handler drains creation events for queue items. One invocation performs at
// most one user send, at most one operator send, and exactly one attempted
// terminal write.
type Handler struct {
	config *Config
	store  QueueStore
	ses    aws.SESAPI
	sns    aws.SNSAPI
	logger logger.Logger
}

func NewHandler(config *Config, store QueueStore, sesClient aws.SESAPI, snsClient aws.SNSAPI, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Handle processes one creation event. Creation events are delivered
// at-least-once, so the same item id can arrive more than once; duplicates
// are absorbed by the status guard inside execute.
func (h *Handler) Handle(ctx context.Context, itemID string) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	err := h.execute(ctx, itemID)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	return err
}

func (h *Handler) execute(ctx context.Context, itemID string) error {
	log := h.logger.WithFields(map[string]interface{}{"itemId": itemID})

	item, err := h.store.GetQueueItem(ctx, itemID)
	if err != nil {
		metrics.DispatchFailed.WithLabelValues("read").Inc()
		return fmt.Errorf("read queue item %s: %w", itemID, err)
	}

	// Idempotency guard: duplicate deliveries of the creation event are a
	// no-op once the item is terminal. The guard is read-then-act; the
	// conditional write below is what actually keeps a racing duplicate
	// from overwriting the terminal status.
	if item.Terminal() {
		log.Info("item already processed, skipping", map[string]interface{}{
			"status": item.Status,
		})
		metrics.DispatchSkipped.Inc()
		return nil
	}

	// User-facing email first. The sends are sequential so the captured
	// error is unambiguous about which recipient failed.
	if err := h.sendEmail(ctx, item.Payload.UserEmail, item.Payload.Subject, item.Payload.HTMLBody); err != nil {
		sendErr := fmt.Sprintf("user send: %v", err)
		log.Error("user email send failed", map[string]interface{}{
			"recipient": item.Payload.UserEmail,
			"error":     err,
		})
		metrics.DispatchFailed.WithLabelValues("user-send").Inc()
		h.writeTerminal(ctx, log, itemID, models.StatusFailed, &sendErr)
		return fmt.Errorf("dispatch %s: %s", itemID, sendErr)
	}

	// Operator notification with the derived subject and synthesized body.
	// If this leg fails the item ends failed even though the user email is
	// already out the door; the error text records that asymmetry.
	operatorSubject := buildOperatorSubject(item.Payload.CompanyName)
	operatorBody := buildOperatorBody(item.Payload)
	if err := h.sendEmail(ctx, item.Payload.OperatorEmail, operatorSubject, operatorBody); err != nil {
		sendErr := fmt.Sprintf("operator send (user email already delivered): %v", err)
		log.Error("operator email send failed", map[string]interface{}{
			"recipient": item.Payload.OperatorEmail,
			"error":     err,
		})
		metrics.DispatchFailed.WithLabelValues("operator-send").Inc()
		h.writeTerminal(ctx, log, itemID, models.StatusFailed, &sendErr)
		return fmt.Errorf("dispatch %s: %s", itemID, sendErr)
	}

	if !h.writeTerminal(ctx, log, itemID, models.StatusSent, nil) {
		return fmt.Errorf("dispatch %s: terminal status write failed", itemID)
	}

	h.maybeSendScoreAlert(ctx, log, item.Payload)

	log.Info("queue item dispatched", map[string]interface{}{
		"userEmail": item.Payload.UserEmail,
		"score":     item.Payload.Score,
	})
	metrics.DispatchCompleted.Inc()
	return nil
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject)},
			Body: &sestypes.Body{
				Html: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
		Source: awssdk.String(h.config.FromEmail),
	})
	return err
}

// writeTerminal attempts the single terminal transition. A write failure is
// logged and counted but never retracts an email that already went out. A
// conflict means a concurrent invocation won the transition; the item is
// terminal either way, so the write is treated as settled.
func (h *Handler) writeTerminal(ctx context.Context, log logger.Logger, itemID, status string, errMsg *string) bool {
	ok, err := h.store.MarkQueueItemTerminal(ctx, itemID, status, errMsg)
	if err != nil {
		log.Error("terminal status write failed", map[string]interface{}{
			"status": status,
			"error":  err,
		})
		metrics.DispatchFailed.WithLabelValues("status-write").Inc()
		return false
	}
	if !ok {
		log.Warn("terminal status already written by concurrent invocation", map[string]interface{}{
			"status": status,
		})
	}
	return true
}

// maybeSendScoreAlert publishes a short SMS for high-score submissions. The
// alert is best-effort and never changes the event's outcome.
func (h *Handler) maybeSendScoreAlert(ctx context.Context, log logger.Logger, payload models.EmailPayload) {
	if !h.config.SMSEnabled || h.sns == nil || h.config.AlertPhoneNumber == "" {
		return
	}
	if payload.Score < h.config.ScoreAlertThreshold {
		return
	}

	input := &sns.PublishInput{
		PhoneNumber: awssdk.String(h.config.AlertPhoneNumber),
		Message:     awssdk.String(buildAlertMessage(payload)),
	}
	if h.config.SMSSenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(h.config.SMSSenderID),
			},
		}
	}

	_, err := h.sns.Publish(ctx, input)
	if err != nil {
		log.Error("score alert SMS failed", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute runs the dispatch protocol without the invocation timeout wrapper.
func (h *Handler) Execute(ctx context.Context, itemID string) error {
	return h.execute(ctx, itemID)
}
