package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/julian-najas/cacp/pkg/models"
)

const redisKeyPrefix = "cacp:consent:"

// RedisStore persists consent records in Redis so grants survive restarts
// and are visible to every worker.
type RedisStore struct {
	client *redis.Client

	now func() time.Time
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

func (s *RedisStore) HasConsent(ctx context.Context, patientID, channel string) (bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+consentKey(patientID, channel)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read consent for %s: %w", patientID, err)
	}

	var record models.ConsentRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return false, fmt.Errorf("decode consent record for %s: %w", patientID, err)
	}
	return record.IsActive(), nil
}

func (s *RedisStore) Grant(ctx context.Context, patientID, channel string) error {
	record := models.ConsentRecord{
		PatientID: patientID,
		Channel:   channel,
		GrantedAt: s.now().UTC(),
	}
	return s.write(ctx, record)
}

func (s *RedisStore) Revoke(ctx context.Context, patientID, channel string) error {
	raw, err := s.client.Get(ctx, redisKeyPrefix+consentKey(patientID, channel)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read consent for %s: %w", patientID, err)
	}

	var record models.ConsentRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return fmt.Errorf("decode consent record for %s: %w", patientID, err)
	}
	if !record.IsActive() {
		return nil
	}

	revokedAt := s.now().UTC()
	record.RevokedAt = &revokedAt
	return s.write(ctx, record)
}

func (s *RedisStore) write(ctx context.Context, record models.ConsentRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode consent record: %w", err)
	}

	key := redisKeyPrefix + consentKey(record.PatientID, record.Channel)
	if err := s.client.Set(ctx, key, encoded, 0).Err(); err != nil {
		return fmt.Errorf("write consent for %s: %w", record.PatientID, err)
	}
	return nil
}
