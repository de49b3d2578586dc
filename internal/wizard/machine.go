package wizard

import "fmt"

// Event - действие пользователя или результат генерации.
type Event string

const (
	EventSubmitStory     Event = "submit_story"
	EventNarrativeReady  Event = "narrative_ready"
	EventNarrativeFailed Event = "narrative_failed"
	EventModify          Event = "modify"
	EventFinalize        Event = "finalize"
	EventSubmitTone      Event = "submit_tone"
	EventSynthesisReady  Event = "synthesis_ready"
	EventSynthesisFailed Event = "synthesis_failed"
	EventBack            Event = "back"
	EventCancel          Event = "cancel"
)

// transitions - таблица переходов: экран -> событие -> следующий экран.
var transitions = map[Screen]map[Event]Screen{
	ScreenInput: {
		EventSubmitStory:     ScreenInput,
		EventNarrativeReady:  ScreenReview,
		EventNarrativeFailed: ScreenInput,
		EventCancel:          ScreenInput,
	},
	ScreenReview: {
		EventModify:   ScreenInput,
		EventFinalize: ScreenSynthesis,
		EventCancel:   ScreenReview,
	},
	ScreenSynthesis: {
		EventSubmitTone:      ScreenSynthesis,
		EventSynthesisReady:  ScreenSynthesis,
		EventSynthesisFailed: ScreenSynthesis,
		EventBack:            ScreenReview,
		EventCancel:          ScreenSynthesis,
	},
}

// Next возвращает экран, в который переводит событие ev из экрана from.
func Next(from Screen, ev Event) (Screen, error) {
	byEvent, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScreen, from)
	}
	to, ok := byEvent[ev]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}
	return to, nil
}

// Allowed сообщает, допустимо ли событие на экране.
func Allowed(from Screen, ev Event) bool {
	_, err := Next(from, ev)
	return err == nil
}
