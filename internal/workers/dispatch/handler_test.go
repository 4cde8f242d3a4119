// internal/workers/dispatch/handler_test.go
package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-workers/internal/common/logger"
	"assessment-workers/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

type MockQueueStore struct {
	GetQueueItemFunc          func(ctx context.Context, id string) (*models.QueueItem, error)
	MarkQueueItemTerminalFunc func(ctx context.Context, id, status string, errMsg *string) (bool, error)
}

func (m *MockQueueStore) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	return m.GetQueueItemFunc(ctx, id)
}

func (m *MockQueueStore) MarkQueueItemTerminal(ctx context.Context, id, status string, errMsg *string) (bool, error) {
	return m.MarkQueueItemTerminalFunc(ctx, id, status, errMsg)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		FromEmail:           "noreply@airelab.com",
		SMSEnabled:          false,
		AlertPhoneNumber:    "+15550001111",
		ScoreAlertThreshold: 80,
		Timeout:             30 * time.Second,
	}
}

func createPendingItem(id string) *models.QueueItem {
	return &models.QueueItem{
		ID: id,
		Payload: models.EmailPayload{
			UserEmail:     "jane@acme.com",
			OperatorEmail: "ops@airelab.com",
			Subject:       "Your AI Readiness Results",
			HTMLBody:      "<h1>Your score is 72</h1>",
			CompanyName:   "Acme Corp",
			Industry:      "technology",
			TeamSize:      25,
			Budget:        models.Budget100K250K,
			Timeline:      models.Timeline3To6Months,
			Score:         72,
		},
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

type terminalWrite struct {
	status string
	errMsg *string
}

func storeForItem(item *models.QueueItem, writes *[]terminalWrite) *MockQueueStore {
	return &MockQueueStore{
		GetQueueItemFunc: func(ctx context.Context, id string) (*models.QueueItem, error) {
			return item, nil
		},
		MarkQueueItemTerminalFunc: func(ctx context.Context, id, status string, errMsg *string) (bool, error) {
			*writes = append(*writes, terminalWrite{status: status, errMsg: errMsg})
			return true, nil
		},
	}
}

func succeedingSES(sent *[]string) *MockSESService {
	return &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			*sent = append(*sent, params.Destination.ToAddresses[0])
			return &ses.SendEmailOutput{}, nil
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	item := createPendingItem("item-001")

	var writes []terminalWrite
	var subjects []string
	var recipients []string

	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			recipients = append(recipients, params.Destination.ToAddresses[0])
			subjects = append(subjects, *params.Message.Subject.Data)
			assert.Equal(t, "noreply@airelab.com", *params.Source)
			return &ses.SendEmailOutput{}, nil
		},
	}

	handler := NewHandler(createTestConfig(), storeForItem(item, &writes), mockSES, nil, logger.NewTestLogger(t))

	err := handler.Execute(context.Background(), "item-001")
	require.NoError(t, err)

	// User email goes first, operator second, with the derived subject.
	require.Equal(t, []string{"jane@acme.com", "ops@airelab.com"}, recipients)
	assert.Equal(t, "Your AI Readiness Results", subjects[0])
	assert.Equal(t, "[ASSESSMENT] Acme Corp - AI Readiness Assessment Submission", subjects[1])

	require.Len(t, writes, 1)
	assert.Equal(t, models.StatusSent, writes[0].status)
	assert.Nil(t, writes[0].errMsg)
}

func TestHandler_Execute_SkipsTerminalItem(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "already sent", status: models.StatusSent},
		{name: "already failed", status: models.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := createPendingItem("item-002")
			item.Status = tt.status

			var writes []terminalWrite
			var sent []string

			handler := NewHandler(createTestConfig(), storeForItem(item, &writes), succeedingSES(&sent), nil, logger.NewTestLogger(t))

			err := handler.Execute(context.Background(), "item-002")
			require.NoError(t, err)

			// A duplicate delivery of the creation event must be a full no-op.
			assert.Empty(t, sent)
			assert.Empty(t, writes)
		})
	}
}

func TestHandler_Execute_UserSendFails(t *testing.T) {
	item := createPendingItem("item-003")

	var writes []terminalWrite
	var recipients []string

	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			recipients = append(recipients, params.Destination.ToAddresses[0])
			return nil, errors.New("MessageRejected: address suppressed")
		},
	}

	handler := NewHandler(createTestConfig(), storeForItem(item, &writes), mockSES, nil, logger.NewTestLogger(t))

	err := handler.Execute(context.Background(), "item-003")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user send")

	// The operator send is skipped once the user send fails.
	require.Equal(t, []string{"jane@acme.com"}, recipients)

	require.Len(t, writes, 1)
	assert.Equal(t, models.StatusFailed, writes[0].status)
	require.NotNil(t, writes[0].errMsg)
	assert.Contains(t, *writes[0].errMsg, "MessageRejected")
}

func TestHandler_Execute_OperatorSendFails(t *testing.T) {
	item := createPendingItem("item-004")

	var writes []terminalWrite
	var recipients []string

	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			to := params.Destination.ToAddresses[0]
			recipients = append(recipients, to)
			if to == "ops@airelab.com" {
				return nil, errors.New("Throttling: rate exceeded")
			}
			return &ses.SendEmailOutput{}, nil
		},
	}

	handler := NewHandler(createTestConfig(), storeForItem(item, &writes), mockSES, nil, logger.NewTestLogger(t))

	err := handler.Execute(context.Background(), "item-004")
	require.Error(t, err)

	// Exactly one user send happened and the item still ends failed.
	require.Equal(t, []string{"jane@acme.com", "ops@airelab.com"}, recipients)

	require.Len(t, writes, 1)
	assert.Equal(t, models.StatusFailed, writes[0].status)
	require.NotNil(t, writes[0].errMsg)
	assert.Contains(t, *writes[0].errMsg, "operator send")
	assert.Contains(t, *writes[0].errMsg, "user email already delivered")
}

func TestHandler_Execute_ItemNotFound(t *testing.T) {
	store := &MockQueueStore{
		GetQueueItemFunc: func(ctx context.Context, id string) (*models.QueueItem, error) {
			return nil, errors.New("queue item not found")
		},
		MarkQueueItemTerminalFunc: func(ctx context.Context, id, status string, errMsg *string) (bool, error) {
			t.Fatal("no terminal write expected for unreadable item")
			return false, nil
		},
	}

	var sent []string
	handler := NewHandler(createTestConfig(), store, succeedingSES(&sent), nil, logger.NewTestLogger(t))

	err := handler.Execute(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read queue item")
	assert.Empty(t, sent)
}

func TestHandler_Execute_StatusWriteFails(t *testing.T) {
	item := createPendingItem("item-005")

	var sent []string
	store := &MockQueueStore{
		GetQueueItemFunc: func(ctx context.Context, id string) (*models.QueueItem, error) {
			return item, nil
		},
		MarkQueueItemTerminalFunc: func(ctx context.Context, id, status string, errMsg *string) (bool, error) {
			return false, errors.New("connection reset")
		},
	}

	handler := NewHandler(createTestConfig(), store, succeedingSES(&sent), nil, logger.NewTestLogger(t))

	err := handler.Execute(context.Background(), "item-005")

	// Both sends went out; the write failure surfaces so the event is
	// redelivered, but the sends are never retracted.
	require.Equal(t, []string{"jane@acme.com", "ops@airelab.com"}, sent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal status write failed")
}

func TestHandler_Execute_ConcurrentTerminalWrite(t *testing.T) {
	item := createPendingItem("item-006")

	var sent []string
	store := &MockQueueStore{
		GetQueueItemFunc: func(ctx context.Context, id string) (*models.QueueItem, error) {
			return item, nil
		},
		MarkQueueItemTerminalFunc: func(ctx context.Context, id, status string, errMsg *string) (bool, error) {
			// Another invocation won the conditional update.
			return false, nil
		},
	}

	handler := NewHandler(createTestConfig(), store, succeedingSES(&sent), nil, logger.NewTestLogger(t))

	err := handler.Execute(context.Background(), "item-006")
	require.NoError(t, err)
}

// ==========================
// Score Alert Tests
// ==========================

func TestHandler_Execute_ScoreAlert(t *testing.T) {
	tests := []struct {
		name        string
		smsEnabled  bool
		score       int
		expectAlert bool
	}{
		{name: "high score publishes alert", smsEnabled: true, score: 85, expectAlert: true},
		{name: "threshold score publishes alert", smsEnabled: true, score: 80, expectAlert: true},
		{name: "low score skips alert", smsEnabled: true, score: 55, expectAlert: false},
		{name: "sms disabled skips alert", smsEnabled: false, score: 95, expectAlert: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := createPendingItem("item-007")
			item.Payload.Score = tt.score

			var writes []terminalWrite
			var sent []string
			published := 0

			mockSNS := &MockSNSService{
				PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					published++
					assert.Equal(t, "+15550001111", *params.PhoneNumber)
					assert.True(t, strings.Contains(*params.Message, "Acme Corp"))
					return &sns.PublishOutput{}, nil
				},
			}

			config := createTestConfig()
			config.SMSEnabled = tt.smsEnabled

			handler := NewHandler(config, storeForItem(item, &writes), succeedingSES(&sent), mockSNS, logger.NewTestLogger(t))

			err := handler.Execute(context.Background(), "item-007")
			require.NoError(t, err)

			if tt.expectAlert {
				assert.Equal(t, 1, published)
			} else {
				assert.Zero(t, published)
			}
		})
	}
}

func TestHandler_Execute_ScoreAlertFailureIsNonFatal(t *testing.T) {
	item := createPendingItem("item-008")
	item.Payload.Score = 92

	var writes []terminalWrite
	var sent []string

	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("InvalidParameter: phone number")
		},
	}

	config := createTestConfig()
	config.SMSEnabled = true

	handler := NewHandler(config, storeForItem(item, &writes), succeedingSES(&sent), mockSNS, logger.NewTestLogger(t))

	err := handler.Execute(context.Background(), "item-008")
	require.NoError(t, err)

	require.Len(t, writes, 1)
	assert.Equal(t, models.StatusSent, writes[0].status)
}
