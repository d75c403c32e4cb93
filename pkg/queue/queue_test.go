package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julian-najas/cacp/pkg/models"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewQueue(client), mr
}

func testEnvelope(appointmentID string) models.Envelope {
	return models.Envelope{
		"action_type":    "send_reminder",
		"appointment_id": appointmentID,
		"patient_id":     "PAT-001",
		"channel":        "sms",
	}
}

func TestEnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	length, err := q.Enqueue(ctx, testEnvelope("APT-100"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	envelope, err := q.Dequeue(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "APT-100", envelope.AppointmentID())
	assert.Equal(t, "send_reminder", envelope.ActionType())

	_, err = q.Dequeue(ctx, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestDequeuePreservesOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	for _, id := range []string{"APT-1", "APT-2", "APT-3"} {
		_, err := q.Enqueue(ctx, testEnvelope(id))
		require.NoError(t, err)
	}

	for _, want := range []string{"APT-1", "APT-2", "APT-3"} {
		envelope, err := q.Dequeue(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, want, envelope.AppointmentID())
	}
}

func TestPopOnce(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	_, err := q.PopOnce(ctx)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	_, err = q.Enqueue(ctx, testEnvelope("APT-100"))
	require.NoError(t, err)

	envelope, err := q.PopOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "APT-100", envelope.AppointmentID())
}

func TestScheduleRetryAndPromote(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()
	now := time.Now()

	envelope := testEnvelope("APT-100")
	envelope.SetRetryCount(1)
	require.NoError(t, q.ScheduleRetry(ctx, envelope, now.Add(60*time.Second)))

	// Not due yet.
	moved, err := q.PromoteDueRetries(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, moved)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	// Past the due time the entry moves to the main queue.
	moved, err = q.PromoteDueRetries(ctx, now.Add(61*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	promoted, err := q.PopOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "APT-100", promoted.AppointmentID())
	assert.Equal(t, 1, promoted.RetryCount())

	// The retry entry is consumed.
	moved, err = q.PromoteDueRetries(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestReplayDLQResetsRetryCount(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	envelope := testEnvelope("APT-100")
	envelope.SetRetryCount(3)
	require.NoError(t, q.PushDLQ(ctx, envelope))

	depth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	replayed, err := q.ReplayDLQ(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	depth, err = q.DLQDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	requeued, err := q.PopOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "APT-100", requeued.AppointmentID())
	assert.Zero(t, requeued.RetryCount())
}

func TestReplayDLQEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	replayed, err := q.ReplayDLQ(t.Context(), 10)
	require.NoError(t, err)
	assert.Zero(t, replayed)
}

func TestReplayDLQKeepsCorruptEntries(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := t.Context()

	_, err := mr.RPush(DLQKey, "{not json")
	require.NoError(t, err)

	replayed, err := q.ReplayDLQ(ctx, 10)
	require.Error(t, err)
	assert.Zero(t, replayed)

	// The corrupt entry stays in the DLQ instead of being dropped.
	depth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestTrimDLQ(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	for _, id := range []string{"APT-1", "APT-2", "APT-3", "APT-4", "APT-5"} {
		require.NoError(t, q.PushDLQ(ctx, testEnvelope(id)))
	}

	require.NoError(t, q.TrimDLQ(ctx, 3))

	depth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)

	// The oldest entries were dropped.
	raw, err := q.Client().LRange(ctx, DLQKey, 0, -1).Result()
	require.NoError(t, err)
	var first models.Envelope
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &first))
	assert.Equal(t, "APT-3", first.AppointmentID())
}

func TestAcquireDedup(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	acquired, err := q.AcquireDedup(ctx, "APT-100", "sms", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = q.AcquireDedup(ctx, "APT-100", "sms", time.Hour)
	require.NoError(t, err)
	assert.False(t, acquired)

	// A different channel for the same appointment is unaffected.
	acquired, err = q.AcquireDedup(ctx, "APT-100", "whatsapp", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestAcquireDedupExpires(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := t.Context()

	acquired, err := q.AcquireDedup(ctx, "APT-100", "sms", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)

	mr.FastForward(2 * time.Hour)

	acquired, err = q.AcquireDedup(ctx, "APT-100", "sms", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestAllowRate(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()
	now := time.Now()

	for i := 0; i < 3; i++ {
		allowed, err := q.AllowRate(ctx, "PAT-001", "sms", 3, time.Hour, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, allowed, "send %d should be allowed", i+1)
	}

	allowed, err := q.AllowRate(ctx, "PAT-001", "sms", 3, time.Hour, now.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, allowed, "fourth send inside the window should be blocked")

	// Another patient has an independent window.
	allowed, err = q.AllowRate(ctx, "PAT-002", "sms", 3, time.Hour, now)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAllowRateWindowSlides(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := q.AllowRate(ctx, "PAT-001", "sms", 3, time.Hour, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	// Once the earlier sends fall out of the window the patient may be
	// contacted again.
	allowed, err := q.AllowRate(ctx, "PAT-001", "sms", 3, time.Hour, now.Add(61*time.Minute))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAcquireDeliveryMarker(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	acquired, err := q.AcquireDeliveryMarker(ctx, "delivery-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = q.AcquireDeliveryMarker(ctx, "delivery-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, acquired)
}
