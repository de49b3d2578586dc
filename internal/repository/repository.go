package repository

import (
	"context"
	"time"

	"story-wizard/internal/models"

	"github.com/google/uuid"
)

// SessionRepository хранит сессии мастера с ограниченным временем жизни.
type SessionRepository interface {
	// Get возвращает копию сессии. Для отсутствующей или истекшей сессии - models.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)
	// Save сохраняет сессию и продлевает ее TTL.
	Save(ctx context.Context, session *models.Session) error
	// Delete удаляет сессию. Отсутствие сессии не является ошибкой.
	Delete(ctx context.Context, id string) error

	// AcquireLock захватывает блокировку генерации для формы сессии.
	// Возвращает false, если блокировка уже занята другим токеном.
	AcquireLock(ctx context.Context, sessionID, kind, token string, ttl time.Duration) (bool, error)
	// ReleaseLock снимает блокировку, только если она принадлежит token.
	ReleaseLock(ctx context.Context, sessionID, kind, token string) error
}

// NewSessionID генерирует идентификатор новой сессии.
func NewSessionID() string {
	return uuid.NewString()
}
