package service

import (
	"context"

	"story-wizard/internal/models"
)

// WizardService - контроллер мастера: последовательность экранов и вызовы генераторов.
// Генерация запускается в фоне; результат применяется к сессии по токену ожидания.
type WizardService interface {
	// EnsureSession возвращает существующую сессию или создает новую. created=true для новой.
	EnsureSession(ctx context.Context, sessionID string) (session *models.Session, created bool, err error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	SubmitStory(ctx context.Context, sessionID string, input map[string]string) (*models.Session, error)
	Modify(ctx context.Context, sessionID string) (*models.Session, error)
	Finalize(ctx context.Context, sessionID string) (*models.Session, error)
	SubmitTone(ctx context.Context, sessionID string, tone string) (*models.Session, error)
	Back(ctx context.Context, sessionID string) (*models.Session, error)
	Cancel(ctx context.Context, sessionID string) (*models.Session, error)
	Reset(ctx context.Context, sessionID string) (*models.Session, error)

	// Wait ждет завершения генераций сессии и возвращает актуальное состояние.
	Wait(ctx context.Context, sessionID string) (*models.Session, error)
}
