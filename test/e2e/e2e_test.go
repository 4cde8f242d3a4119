// test/e2e/e2e_test.go

// End-to-end pipeline test: a submission posted to the HTTP API flows
// through the store, the Redis trigger and the dispatch worker, ending with
// both emails sent and the queue item terminal. Redis is miniredis and the
// store is an in-memory double; SES is a recording mock.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-workers/internal/api"
	"assessment-workers/internal/common/logger"
	"assessment-workers/internal/models"
	"assessment-workers/internal/queue"
	"assessment-workers/internal/scoring"
	"assessment-workers/internal/store"
	"assessment-workers/internal/workers/dispatch"
)

// memoryStore is an in-memory stand-in for the Postgres store with the same
// conditional-write semantics.
type memoryStore struct {
	mu          sync.Mutex
	notifier    store.Notifier
	assessments map[string]*models.AssessmentRecord
	items       map[string]*models.QueueItem
}

func newMemoryStore(notifier store.Notifier) *memoryStore {
	return &memoryStore{
		notifier:    notifier,
		assessments: make(map[string]*models.AssessmentRecord),
		items:       make(map[string]*models.QueueItem),
	}
}

func (m *memoryStore) CreateAssessment(ctx context.Context, a models.Assessment, r models.ScoreResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.assessments[id] = &models.AssessmentRecord{
		ID: id, Assessment: a, Result: r, CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (m *memoryStore) GetAssessment(ctx context.Context, id string) (*models.AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assessments[id], nil
}

func (m *memoryStore) CreateQueueItem(ctx context.Context, payload models.EmailPayload) (string, error) {
	m.mu.Lock()
	id := uuid.New().String()
	m.items[id] = &models.QueueItem{
		ID: id, Payload: payload, Status: models.StatusPending, CreatedAt: time.Now().UTC(),
	}
	m.mu.Unlock()

	return id, m.notifier.QueueItemCreated(ctx, id)
}

func (m *memoryStore) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := *m.items[id]
	return &item, nil
}

func (m *memoryStore) MarkQueueItemTerminal(ctx context.Context, id, status string, errMsg *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.items[id]
	if item.Status != models.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	item.Status = status
	item.Error = errMsg
	if status == models.StatusSent {
		item.SentAt = &now
	} else {
		item.FailedAt = &now
	}
	return true, nil
}

func (m *memoryStore) ListStalePendingIDs(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var ids []string
	for id, item := range m.items {
		if item.Status == models.StatusPending && item.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type recordingSES struct {
	mu    sync.Mutex
	sends []*ses.SendEmailInput
}

func (r *recordingSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, params)
	return &ses.SendEmailOutput{}, nil
}

func (r *recordingSES) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sends {
		out = append(out, s.Destination.ToAddresses[0])
	}
	return out
}

func TestSubmissionToDispatchPipeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	log := logger.NewTestLogger(t)
	trigger := queue.NewTrigger(redisClient, "email_queue:created")
	st := newMemoryStore(trigger)
	sesMock := &recordingSES{}

	handler := dispatch.NewHandler(&dispatch.Config{
		FromEmail: "noreply@airelab.com",
		Timeout:   5 * time.Second,
	}, st, sesMock, nil, log)

	listener := queue.NewListener(trigger, st, handler.Handle, queue.ListenerConfig{
		PollInterval:     20 * time.Millisecond,
		RecoveryInterval: time.Hour,
	}, log)
	go listener.Run(ctx)

	server := api.NewServer(api.Config{
		FromEmail:     "noreply@airelab.com",
		OperatorEmail: "ops@airelab.com",
	}, st, scoring.NewEngine(), sesMock, log)
	router := server.Router()

	body, _ := json.Marshal(map[string]interface{}{
		"companyName": "Acme Corp",
		"industry":    "technology",
		"teamSize":    25,
		"email":       "jane@acme.com",
		"techStack":   []string{"cloud_infrastructure", "ai_ml_tools"},
		"challenges":  []string{"data_quality"},
		"budget":      models.Budget250K500K,
		"timeline":    models.Timeline6To12Months,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		AssessmentID string `json:"assessmentId"`
		Score        int    `json:"score"`
		Level        string `json:"level"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AssessmentID)
	assert.GreaterOrEqual(t, resp.Score, 0)
	assert.LessOrEqual(t, resp.Score, 100)

	// The dispatch worker drains the trigger asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sesMock.recipients()) == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, []string{"jane@acme.com", "ops@airelab.com"}, sesMock.recipients())

	// And the queue item ends terminal sent.
	var itemID string
	st.mu.Lock()
	require.Len(t, st.items, 1)
	for id, item := range st.items {
		itemID = id
		assert.Equal(t, models.StatusSent, item.Status)
		assert.NotNil(t, item.SentAt)
		assert.Nil(t, item.Error)
	}
	st.mu.Unlock()

	// A duplicate creation event for the now-terminal item is a no-op.
	require.NoError(t, trigger.QueueItemCreated(ctx, itemID))
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, sesMock.recipients(), 2)
}
