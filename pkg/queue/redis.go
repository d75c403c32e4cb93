package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key layout. All control-plane keys share the cacp: prefix.
const (
	// ActionsKey is the main FIFO list: push at right, pop at left.
	ActionsKey = "cacp:actions"
	// RetryKey is the retry sorted set, scored by future wall-clock epoch millis.
	RetryKey = "cacp:retry"
	// DLQKey is the dead-letter list.
	DLQKey = "cacp:dlq"
)

func dedupKey(appointmentID, channel string) string {
	return fmt.Sprintf("cacp:sent:%s:%s", appointmentID, channel)
}

func rateKey(patientID, channel string) string {
	return fmt.Sprintf("cacp:rate:%s:%s", patientID, channel)
}

func deliveryKey(deliveryID string) string {
	return fmt.Sprintf("cacp:webhook:delivery:%s", deliveryID)
}

// NewRedisClient creates a client from a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
