package wizard

import (
	"fmt"
	"time"
)

// PendingKind - тип ожидаемой генерации.
type PendingKind string

const (
	PendingNarrative PendingKind = "narrative"
	PendingSynthesis PendingKind = "synthesis"
)

// Pending описывает незавершенный вызов генерации.
// Token связывает результат генерации с переходом, который ее запустил.
type Pending struct {
	Kind      PendingKind `json:"kind"`
	Token     string      `json:"token"`
	StartedAt time.Time   `json:"started_at"`
}

// State - состояние мастера одной сессии.
// Все методы переходов возвращают новое значение и не меняют исходное.
type State struct {
	Screen            Screen            `json:"screen"`
	UserInput         map[string]string `json:"user_input,omitempty"`
	NarrativeText     string            `json:"narrative_text"`
	Preview           string            `json:"preview"`
	Tone              string            `json:"tone,omitempty"`
	Discussion        string            `json:"discussion"`
	DiscussionVisible bool              `json:"discussion_visible"`
	Pending           *Pending          `json:"pending,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// NewState возвращает пустое состояние с активным экраном ввода.
func NewState() State {
	return State{Screen: ScreenInput}
}

// Clone делает глубокую копию состояния.
func (s State) Clone() State {
	c := s
	if s.UserInput != nil {
		c.UserInput = make(map[string]string, len(s.UserInput))
		for k, v := range s.UserInput {
			c.UserInput[k] = v
		}
	}
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return c
}

// Registry строит реестр экранов, соответствующий состоянию.
func (s State) Registry() *Registry {
	r := NewRegistry()
	// Переходы не создают неизвестных экранов; при ошибке остается активным экран ввода.
	_ = r.Activate(s.Screen)
	return r
}

// PendingKindOrEmpty возвращает тип ожидаемой генерации или пустую строку.
func (s State) PendingKindOrEmpty() PendingKind {
	if s.Pending == nil {
		return ""
	}
	return s.Pending.Kind
}

func (s State) move(ev Event) (State, error) {
	to, err := Next(s.Screen, ev)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Screen = to
	return next, nil
}

// SubmitStory заменяет введенные данные целиком и помечает генерацию рассказа как ожидаемую.
func (s State) SubmitStory(input map[string]string, token string, now time.Time) (State, error) {
	if s.Pending != nil {
		return s, fmt.Errorf("%w: %s", ErrPendingGeneration, s.Pending.Kind)
	}
	next, err := s.move(EventSubmitStory)
	if err != nil {
		return s, err
	}
	fresh := make(map[string]string, len(input))
	for k, v := range input {
		fresh[k] = v
	}
	next.UserInput = fresh
	next.Pending = &Pending{Kind: PendingNarrative, Token: token, StartedAt: now}
	next.DiscussionVisible = false
	next.Error = ""
	return next, nil
}

// CompleteNarrative сохраняет сгенерированный рассказ и открывает экран просмотра.
func (s State) CompleteNarrative(token, text string) (State, error) {
	if err := s.checkPending(PendingNarrative, token); err != nil {
		return s, err
	}
	next, err := s.move(EventNarrativeReady)
	if err != nil {
		return s, err
	}
	next.NarrativeText = text
	next.Pending = nil
	next.Error = ""
	return next, nil
}

// FailNarrative снимает ожидание и возвращает пользователя к форме с сообщением об ошибке.
func (s State) FailNarrative(token, message string) (State, error) {
	if err := s.checkPending(PendingNarrative, token); err != nil {
		return s, err
	}
	next, err := s.move(EventNarrativeFailed)
	if err != nil {
		return s, err
	}
	next.Pending = nil
	next.Error = message
	return next, nil
}

// Modify возвращает к форме ввода. Данные не меняются.
func (s State) Modify() (State, error) {
	next, err := s.move(EventModify)
	if err != nil {
		return s, err
	}
	next.Error = ""
	return next, nil
}

// Finalize копирует текущий рассказ в область предпросмотра без изменений.
func (s State) Finalize() (State, error) {
	next, err := s.move(EventFinalize)
	if err != nil {
		return s, err
	}
	next.Preview = s.NarrativeText
	next.Error = ""
	return next, nil
}

// SubmitTone запоминает тон и помечает синтез как ожидаемый, скрывая прошлый результат.
func (s State) SubmitTone(tone, token string, now time.Time) (State, error) {
	if s.Pending != nil {
		return s, fmt.Errorf("%w: %s", ErrPendingGeneration, s.Pending.Kind)
	}
	next, err := s.move(EventSubmitTone)
	if err != nil {
		return s, err
	}
	next.Tone = tone
	next.Pending = &Pending{Kind: PendingSynthesis, Token: token, StartedAt: now}
	next.DiscussionVisible = false
	next.Error = ""
	return next, nil
}

// CompleteSynthesis показывает результат синтеза.
func (s State) CompleteSynthesis(token, text string) (State, error) {
	if err := s.checkPending(PendingSynthesis, token); err != nil {
		return s, err
	}
	next, err := s.move(EventSynthesisReady)
	if err != nil {
		return s, err
	}
	next.Discussion = text
	next.DiscussionVisible = true
	next.Pending = nil
	next.Error = ""
	return next, nil
}

// FailSynthesis снимает ожидание, показывает ошибку и обязательный текст fallback.
func (s State) FailSynthesis(token, message, fallback string) (State, error) {
	if err := s.checkPending(PendingSynthesis, token); err != nil {
		return s, err
	}
	next, err := s.move(EventSynthesisFailed)
	if err != nil {
		return s, err
	}
	next.Discussion = fallback
	next.DiscussionVisible = fallback != ""
	next.Pending = nil
	next.Error = message
	return next, nil
}

// Back возвращает к просмотру рассказа. Ожидаемый синтез, если он был, снимается.
func (s State) Back() (State, error) {
	next, err := s.move(EventBack)
	if err != nil {
		return s, err
	}
	next.Pending = nil
	next.Error = ""
	return next, nil
}

// Cancel снимает ожидание генерации, экран не меняется.
func (s State) Cancel() (State, error) {
	next, err := s.move(EventCancel)
	if err != nil {
		return s, err
	}
	next.Pending = nil
	return next, nil
}

func (s State) checkPending(kind PendingKind, token string) error {
	if s.Pending == nil || s.Pending.Kind != kind || s.Pending.Token != token {
		return fmt.Errorf("%w: %s", ErrStalePending, kind)
	}
	return nil
}
