// internal/queue/trigger.go

// Package queue carries the "queue item created" events from the store to
// the dispatch worker. Delivery is at-least-once: the fast path is a Redis
// list, and a recovery sweep re-enqueues pending items whose event was lost
// in transit (crash between insert and push, or a consumer dying mid-item).
// Duplicate deliveries are expected and absorbed by the worker's idempotency
// guard.
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"assessment-workers/internal/common/logger"
	"assessment-workers/internal/common/metrics"
)

// Trigger publishes creation events. It implements store.Notifier.
type Trigger struct {
	client *redis.Client
	key    string
}

func NewTrigger(client *redis.Client, key string) *Trigger {
	return &Trigger{client: client, key: key}
}

// QueueItemCreated pushes the item id onto the trigger list. Only the id
// travels over the wire; the worker re-reads the durable row.
func (t *Trigger) QueueItemCreated(ctx context.Context, itemID string) error {
	return t.client.RPush(ctx, t.key, itemID).Err()
}

// Depth returns the number of undelivered creation events.
func (t *Trigger) Depth(ctx context.Context) (int64, error) {
	return t.client.LLen(ctx, t.key).Result()
}

// HandleFunc processes one creation event. An error marks the invocation
// failed; redelivery is left to the recovery sweep.
type HandleFunc func(ctx context.Context, itemID string) error

// StalePendingLister is the slice of the store the recovery sweep needs.
type StalePendingLister interface {
	ListStalePendingIDs(ctx context.Context, olderThan time.Duration, limit int) ([]string, error)
}

// ListenerConfig tunes the consume loop and the recovery sweep.
type ListenerConfig struct {
	PollInterval     time.Duration // BLPOP block timeout
	RecoveryInterval time.Duration
	StaleAfter       time.Duration
	RecoveryBatch    int
}

// Listener drains the trigger list and invokes the dispatch handler once per
// delivered event.
type Listener struct {
	trigger *Trigger
	store   StalePendingLister
	handle  HandleFunc
	cfg     ListenerConfig
	logger  logger.Logger
}

func NewListener(trigger *Trigger, store StalePendingLister, handle HandleFunc, cfg ListenerConfig, log logger.Logger) *Listener {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RecoveryInterval == 0 {
		cfg.RecoveryInterval = time.Minute
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.RecoveryBatch == 0 {
		cfg.RecoveryBatch = 100
	}
	return &Listener{
		trigger: trigger,
		store:   store,
		handle:  handle,
		cfg:     cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatch-listener"}),
	}
}

// Run consumes creation events until the context is cancelled. The recovery
// sweep runs on its own ticker in the same call.
func (l *Listener) Run(ctx context.Context) error {
	recovery := time.NewTicker(l.cfg.RecoveryInterval)
	defer recovery.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-recovery.C:
			l.recover(ctx)
		default:
		}

		res, err := l.trigger.client.BLPop(ctx, l.cfg.PollInterval, l.trigger.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("trigger poll failed", map[string]interface{}{"error": err})
			time.Sleep(l.cfg.PollInterval)
			continue
		}
		if len(res) != 2 {
			continue
		}
		itemID := res[1]

		if depth, err := l.trigger.Depth(ctx); err == nil {
			metrics.QueueDepth.Set(float64(depth))
		}

		// Invocation failures stay on the log and the failed counter; the
		// item itself keeps whatever status the worker managed to write.
		if err := l.handle(ctx, itemID); err != nil {
			l.logger.Error("dispatch invocation failed", map[string]interface{}{
				"itemId": itemID,
				"error":  err,
			})
		}
	}
}

// recover re-enqueues pending items old enough that their original creation
// event has evidently been lost.
func (l *Listener) recover(ctx context.Context) {
	ids, err := l.store.ListStalePendingIDs(ctx, l.cfg.StaleAfter, l.cfg.RecoveryBatch)
	if err != nil {
		l.logger.Error("stale pending sweep failed", map[string]interface{}{"error": err})
		return
	}
	if len(ids) == 0 {
		return
	}

	for _, id := range ids {
		if err := l.trigger.QueueItemCreated(ctx, id); err != nil {
			l.logger.Error("stale item re-enqueue failed", map[string]interface{}{
				"itemId": id,
				"error":  err,
			})
		}
	}

	l.logger.Warn("re-enqueued stale pending items", map[string]interface{}{
		"count": len(ids),
	})
}
