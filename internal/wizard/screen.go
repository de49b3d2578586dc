package wizard

import (
	"errors"
	"fmt"
)

// Screen - идентификатор экрана мастера.
type Screen string

const (
	ScreenInput     Screen = "input"
	ScreenReview    Screen = "story-review"
	ScreenSynthesis Screen = "synthesis"
)

// Screens - фиксированный набор экранов в порядке отображения.
var Screens = []Screen{ScreenInput, ScreenReview, ScreenSynthesis}

var (
	ErrUnknownScreen     = errors.New("unknown screen")
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrPendingGeneration = errors.New("generation already pending")
	ErrStalePending      = errors.New("pending generation no longer current")
)

// ParseScreen проверяет строковый идентификатор экрана.
func ParseScreen(id string) (Screen, error) {
	for _, s := range Screens {
		if string(s) == id {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScreen, id)
}

// Registry хранит флаги активности экранов. Активным всегда является ровно один экран.
type Registry struct {
	active map[Screen]bool
}

// NewRegistry создает реестр, в котором активен экран ввода.
func NewRegistry() *Registry {
	r := &Registry{active: make(map[Screen]bool, len(Screens))}
	for _, s := range Screens {
		r.active[s] = false
	}
	r.active[ScreenInput] = true
	return r
}

// Activate деактивирует все экраны и активирует указанный.
// Для неизвестного экрана возвращает ErrUnknownScreen, состояние не меняется.
func (r *Registry) Activate(id Screen) error {
	if _, ok := r.active[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScreen, id)
	}
	for s := range r.active {
		r.active[s] = false
	}
	r.active[id] = true
	return nil
}

// Active возвращает текущий активный экран.
func (r *Registry) Active() Screen {
	for _, s := range Screens {
		if r.active[s] {
			return s
		}
	}
	return ""
}

func (r *Registry) IsActive(id Screen) bool {
	return r.active[id]
}

// ActiveCount нужен для проверки инварианта "ровно один активный экран".
func (r *Registry) ActiveCount() int {
	n := 0
	for _, on := range r.active {
		if on {
			n++
		}
	}
	return n
}

// Flags возвращает копию флагов активности, ключ - идентификатор экрана.
func (r *Registry) Flags() map[string]bool {
	flags := make(map[string]bool, len(r.active))
	for s, on := range r.active {
		flags[string(s)] = on
	}
	return flags
}
