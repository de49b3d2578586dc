package models

import (
	"time"

	"story-wizard/internal/wizard"
)

// Session - сессия мастера, привязанная к cookie браузера.
type Session struct {
	ID        string       `json:"id"`
	State     wizard.State `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewSession создает сессию с начальным состоянием мастера.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     wizard.NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionView - представление сессии для JSON API и websocket-уведомлений.
// Токен ожидания наружу не отдается.
type SessionView struct {
	SessionID         string            `json:"session_id"`
	Screen            string            `json:"screen"`
	Screens           map[string]bool   `json:"screens"`
	UserInput         map[string]string `json:"user_input"`
	NarrativeText     string            `json:"narrative_text"`
	Preview           string            `json:"preview"`
	Tone              string            `json:"tone,omitempty"`
	Discussion        string            `json:"discussion"`
	DiscussionVisible bool              `json:"discussion_visible"`
	Pending           string            `json:"pending,omitempty"`
	Error             string            `json:"error,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewSessionView строит представление из сессии.
func NewSessionView(s *Session) SessionView {
	st := s.State
	input := make(map[string]string, len(st.UserInput))
	for k, v := range st.UserInput {
		input[k] = v
	}
	return SessionView{
		SessionID:         s.ID,
		Screen:            string(st.Screen),
		Screens:           st.Registry().Flags(),
		UserInput:         input,
		NarrativeText:     st.NarrativeText,
		Preview:           st.Preview,
		Tone:              st.Tone,
		Discussion:        st.Discussion,
		DiscussionVisible: st.DiscussionVisible,
		Pending:           string(st.PendingKindOrEmpty()),
		Error:             st.Error,
		UpdatedAt:         s.UpdatedAt,
	}
}
