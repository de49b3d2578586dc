package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Типы событий мастера.
const (
	EventSessionStarted     = "session_started"
	EventStorySubmitted     = "story_submitted"
	EventNarrativeCompleted = "narrative_completed"
	EventNarrativeFailed    = "narrative_failed"
	EventStoryModified      = "story_modified"
	EventStoryFinalized     = "story_finalized"
	EventToneSubmitted      = "tone_submitted"
	EventSynthesisCompleted = "synthesis_completed"
	EventSynthesisFailed    = "synthesis_failed"
	EventNavigatedBack      = "navigated_back"
	EventGenerationCanceled = "generation_cancelled"
	EventSessionReset       = "session_reset"
)

// WizardEvent - событие аналитики мастера.
// Не содержит пользовательских данных: ни полей формы, ни текстов рассказа.
type WizardEvent struct {
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	Type       string    `json:"type"`
	Screen     string    `json:"screen"`
	Kind       string    `json:"kind,omitempty"`
	Tone       string    `json:"tone,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewWizardEvent заполняет идентификатор и время события.
func NewWizardEvent(sessionID, eventType, screen string) WizardEvent {
	return WizardEvent{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		Type:       eventType,
		Screen:     screen,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher публикует события мастера.
type EventPublisher interface {
	PublishWizardEvent(ctx context.Context, event WizardEvent) error
}

// NoopPublisher используется, когда брокер не настроен.
type NoopPublisher struct{}

func (NoopPublisher) PublishWizardEvent(context.Context, WizardEvent) error { return nil }
