// Package storage provides Redis-backed implementations of the
// repository contracts. Records are stored as JSON values under
// per-entity keys; caregivers are additionally indexed in a set so the
// ranker can snapshot them in one round trip.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/core/repository"
	"github.com/mindcare/guardian/infra/logger"
)

const (
	alertKeyPrefix   = "alert:"
	subjectKeyPrefix = "subject:"
	caregiverSetKey  = "subjects:caregivers"
)

// Config defines the Redis connection parameters.
type Config struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	PoolSize   int    `json:"pool_size"`
	AlertTTLHr int    `json:"alert_ttl_hours"`
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// RedisStore implements AlertRepository and SubjectRepository.
type RedisStore struct {
	rdb      *redis.Client
	alertTTL time.Duration
	log      logger.Logger
}

// NewRedisStore wraps an existing client. A zero alert TTL keeps records
// forever.
func NewRedisStore(rdb *redis.Client, cfg Config) *RedisStore {
	return &RedisStore{
		rdb:      rdb,
		alertTTL: time.Duration(cfg.AlertTTLHr) * time.Hour,
		log:      logger.New("redis-store"),
	}
}

// SaveAlert writes the full alert record, notifications included.
func (s *RedisStore) SaveAlert(ctx context.Context, alert *model.Alert) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", alert.ID, err)
	}
	if err := s.rdb.Set(ctx, alertKeyPrefix+alert.ID, raw, s.alertTTL).Err(); err != nil {
		return fmt.Errorf("save alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetAlert loads one alert by id.
func (s *RedisStore) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	raw, err := s.rdb.Get(ctx, alertKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: alert %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	var alert model.Alert
	if err := json.Unmarshal(raw, &alert); err != nil {
		return nil, fmt.Errorf("decode alert %s: %w", id, err)
	}
	return &alert, nil
}

// SaveSubject writes the subject record and keeps the caregiver index
// consistent with its role.
func (s *RedisStore) SaveSubject(ctx context.Context, subject model.Subject) error {
	raw, err := json.Marshal(subject)
	if err != nil {
		return fmt.Errorf("encode subject %s: %w", subject.ID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, subjectKeyPrefix+subject.ID, raw, 0)
	if subject.Role == model.RoleCaregiver {
		pipe.SAdd(ctx, caregiverSetKey, subject.ID)
	} else {
		pipe.SRem(ctx, caregiverSetKey, subject.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save subject %s: %w", subject.ID, err)
	}
	return nil
}

// GetSubject loads one subject by id.
func (s *RedisStore) GetSubject(ctx context.Context, id string) (model.Subject, error) {
	raw, err := s.rdb.Get(ctx, subjectKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Subject{}, fmt.Errorf("%w: subject %s", repository.ErrNotFound, id)
		}
		return model.Subject{}, fmt.Errorf("get subject %s: %w", id, err)
	}
	var subject model.Subject
	if err := json.Unmarshal(raw, &subject); err != nil {
		return model.Subject{}, fmt.Errorf("decode subject %s: %w", id, err)
	}
	return subject, nil
}

// ListCaregivers loads every subject in the caregiver index. Dangling index
// entries are skipped and logged, not fatal.
func (s *RedisStore) ListCaregivers(ctx context.Context) ([]model.Subject, error) {
	ids, err := s.rdb.SMembers(ctx, caregiverSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list caregivers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = subjectKeyPrefix + id
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list caregivers: %w", err)
	}
	out := make([]model.Subject, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			s.log.Warnf("caregiver %s indexed but record missing", ids[i])
			continue
		}
		var subject model.Subject
		if err := json.Unmarshal([]byte(str), &subject); err != nil {
			s.log.Warnf("caregiver %s record corrupt: %v", ids[i], err)
			continue
		}
		out = append(out, subject)
	}
	return out, nil
}
