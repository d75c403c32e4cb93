package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/julian-najas/cacp/pkg/models"
)

// Queue wraps the Redis keys shared by the API process (enqueue, replay) and
// the worker processes (everything else). All mutations are single-key atomic
// primitives, so concurrent workers need no extra coordination.
type Queue struct {
	client *redis.Client
}

// NewQueue wraps an existing Redis client.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Client exposes the underlying Redis client for health checks.
func (q *Queue) Client() *redis.Client {
	return q.client
}

// Enqueue pushes an envelope onto the main queue. Returns the queue length.
func (q *Queue) Enqueue(ctx context.Context, envelope models.Envelope) (int64, error) {
	raw, err := envelope.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode envelope: %w", err)
	}
	length, err := q.client.RPush(ctx, ActionsKey, raw).Result()
	if err != nil {
		return 0, fmt.Errorf("enqueue action: %w", err)
	}
	return length, nil
}

// Dequeue blocks up to timeout waiting for an envelope. Returns ErrQueueEmpty
// when the timeout elapses with nothing available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (models.Envelope, error) {
	result, err := q.client.BLPop(ctx, timeout, ActionsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue action: %w", err)
	}
	// BLPOP returns [key, value].
	return models.ParseEnvelope([]byte(result[1]))
}

// PopOnce removes one envelope without blocking. Returns ErrQueueEmpty when
// the queue is empty.
func (q *Queue) PopOnce(ctx context.Context) (models.Envelope, error) {
	raw, err := q.client.LPop(ctx, ActionsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop action: %w", err)
	}
	return models.ParseEnvelope([]byte(raw))
}

// Depth returns the main queue length.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, ActionsKey).Result()
}

// ScheduleRetry adds the envelope to the retry set, due at the given time.
func (q *Queue) ScheduleRetry(ctx context.Context, envelope models.Envelope, due time.Time) error {
	raw, err := envelope.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	err = q.client.ZAdd(ctx, RetryKey, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: raw,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// PromoteDueRetries moves every retry entry due at or before now back onto
// the main queue. With concurrent workers, only the one that wins the ZREM
// pushes, so each entry is promoted exactly once. Returns the moved count.
func (q *Queue) PromoteDueRetries(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, RetryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan retry set: %w", err)
	}

	moved := 0
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, RetryKey, raw).Result()
		if err != nil {
			return moved, fmt.Errorf("remove retry entry: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, ActionsKey, raw).Err(); err != nil {
			return moved, fmt.Errorf("promote retry entry: %w", err)
		}
		moved++
	}
	return moved, nil
}

// PushDLQ appends the envelope to the dead-letter list.
func (q *Queue) PushDLQ(ctx context.Context, envelope models.Envelope) error {
	raw, err := envelope.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := q.client.RPush(ctx, DLQKey, raw).Err(); err != nil {
		return fmt.Errorf("push to DLQ: %w", err)
	}
	return nil
}

// DLQDepth returns the dead-letter list length.
func (q *Queue) DLQDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, DLQKey).Result()
}

// TrimDLQ caps the dead-letter list at maxLen entries, dropping the oldest.
func (q *Queue) TrimDLQ(ctx context.Context, maxLen int64) error {
	if err := q.client.LTrim(ctx, DLQKey, -maxLen, -1).Err(); err != nil {
		return fmt.Errorf("trim DLQ: %w", err)
	}
	return nil
}

// ReplayDLQ pops up to maxItems envelopes from the DLQ, resets their retry
// count, and pushes them back onto the main queue. A corrupt entry is pushed
// back and stops the replay. Returns the replayed count.
func (q *Queue) ReplayDLQ(ctx context.Context, maxItems int) (int, error) {
	replayed := 0
	for replayed < maxItems {
		raw, err := q.client.LPop(ctx, DLQKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return replayed, fmt.Errorf("pop from DLQ: %w", err)
		}

		envelope, err := models.ParseEnvelope([]byte(raw))
		if err != nil {
			_ = q.client.RPush(ctx, DLQKey, raw).Err()
			return replayed, fmt.Errorf("corrupt DLQ entry: %w", err)
		}

		envelope.SetRetryCount(0)
		if _, err := q.Enqueue(ctx, envelope); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}

// AcquireDedup attempts to claim the per-appointment, per-channel send
// marker. Returns false when a send already claimed it within the TTL.
func (q *Queue) AcquireDedup(ctx context.Context, appointmentID, channel string, ttl time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, dedupKey(appointmentID, channel), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire dedup marker: %w", err)
	}
	return ok, nil
}

// AllowRate applies the sliding-window rate limit for (patient, channel) in
// one atomic pipeline: drop timestamps older than the window, count what
// remains, record this send, refresh the key TTL. The decision uses the
// pre-add count, so limit sends per window pass and the rest are rejected.
func (q *Queue) AllowRate(ctx context.Context, patientID, channel string, limit int, window time.Duration, now time.Time) (bool, error) {
	key := rateKey(patientID, channel)
	nowMillis := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli()

	pipe := q.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(nowMillis),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}

	return countCmd.Val() < int64(limit), nil
}

// AcquireDeliveryMarker claims the idempotency marker for a webhook delivery
// id. Returns false when the delivery was already processed within the TTL.
func (q *Queue) AcquireDeliveryMarker(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, deliveryKey(deliveryID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire delivery marker: %w", err)
	}
	return ok, nil
}
