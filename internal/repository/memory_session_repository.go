package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"story-wizard/internal/models"

	"go.uber.org/zap"
)

var _ SessionRepository = (*memorySessionRepository)(nil)

type memoryEntry struct {
	session   models.Session
	expiresAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	locks    map[string]memoryLock
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// MemorySessionRepository - хранилище сессий в памяти процесса.
type MemorySessionRepository interface {
	SessionRepository
	// Cleanup удаляет истекшие сессии и блокировки, возвращает число удаленных сессий.
	Cleanup() int
	// RunCleanup периодически вызывает Cleanup до отмены ctx.
	RunCleanup(ctx context.Context, interval time.Duration)
}

// NewMemorySessionRepository создает хранилище в памяти с заданным TTL.
func NewMemorySessionRepository(ttl time.Duration, logger *zap.Logger) MemorySessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]memoryLock),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.Named("MemorySessionRepo"),
	}
}

func lockKey(sessionID, kind string) string {
	return fmt.Sprintf("%s:%s", sessionID, kind)
}

func copySession(s *models.Session) models.Session {
	c := *s
	c.State = s.State.Clone()
	return c
}

func (r *memorySessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok || !r.now().Before(entry.expiresAt) {
		return nil, models.ErrSessionNotFound
	}
	s := copySession(&entry.session)
	return &s, nil
}

func (r *memorySessionRepository) Save(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = memoryEntry{
		session:   copySession(session),
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

func (r *memorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	for key := range r.locks {
		if strings.HasPrefix(key, id+":") {
			delete(r.locks, key)
		}
	}
	return nil
}

func (r *memorySessionRepository) AcquireLock(ctx context.Context, sessionID, kind, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := lockKey(sessionID, kind)
	now := r.now()
	if l, ok := r.locks[key]; ok && now.Before(l.expiresAt) {
		return false, nil
	}
	r.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

func (r *memorySessionRepository) ReleaseLock(ctx context.Context, sessionID, kind, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := lockKey(sessionID, kind)
	if l, ok := r.locks[key]; ok && l.token == token {
		delete(r.locks, key)
	}
	return nil
}

func (r *memorySessionRepository) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, entry := range r.sessions {
		if !now.Before(entry.expiresAt) {
			delete(r.sessions, id)
			removed++
		}
	}
	for key, l := range r.locks {
		if !now.Before(l.expiresAt) {
			delete(r.locks, key)
		}
	}
	if removed > 0 {
		r.logger.Debug("Expired sessions removed", zap.Int("count", removed))
	}
	return removed
}

func (r *memorySessionRepository) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup()
		}
	}
}
