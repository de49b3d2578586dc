package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"story-wizard/internal/models"
	"story-wizard/internal/wizard"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ SessionRepository = (*redisSessionRepository)(nil)

// releaseLockScript удаляет блокировку, только если ее значение совпадает с токеном.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSessionRepository creates a new Redis-backed SessionRepository.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionRepository {
	return &redisSessionRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionRepo"),
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("wizard_session:%s", id)
}

func redisLockKey(sessionID, kind string) string {
	return fmt.Sprintf("wizard_lock:%s:%s", sessionID, kind)
}

func (r *redisSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrSessionNotFound
		}
		r.logger.Error("Failed to get session from redis", zap.Error(err), zap.String("sessionID", id))
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.Error("Failed to decode session", zap.Error(err), zap.String("sessionID", id))
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *redisSessionRepository) Save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save session in redis", zap.Error(err), zap.String("sessionID", session.ID))
		return fmt.Errorf("failed to save session in redis: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.Del(ctx, redisLockKey(id, string(wizard.PendingNarrative)), redisLockKey(id, string(wizard.PendingSynthesis)))
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to delete session from redis", zap.Error(err), zap.String("sessionID", id))
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) AcquireLock(ctx context.Context, sessionID, kind, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, redisLockKey(sessionID, kind), token, ttl).Result()
	if err != nil {
		r.logger.Error("Failed to acquire generation lock", zap.Error(err),
			zap.String("sessionID", sessionID), zap.String("kind", kind))
		return false, fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	return ok, nil
}

func (r *redisSessionRepository) ReleaseLock(ctx context.Context, sessionID, kind, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{redisLockKey(sessionID, kind)}, token).Err(); err != nil {
		r.logger.Warn("Failed to release generation lock", zap.Error(err),
			zap.String("sessionID", sessionID), zap.String("kind", kind))
		return fmt.Errorf("failed to release generation lock: %w", err)
	}
	return nil
}
