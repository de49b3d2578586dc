package generation

import (
	"context"
	"errors"
)

// Ключи полей формы ввода.
const (
	FieldAge          = "age"
	FieldGender       = "gender"
	FieldSettingWhere = "setting-where"
	FieldSettingWhen  = "setting-when"
	FieldReligion     = "religion"
	FieldOutcome      = "outcome"
)

// Outcome - желаемый исход рассказа.
type Outcome string

const (
	OutcomeGood    Outcome = "good"
	OutcomeBad     Outcome = "bad"
	OutcomeNeutral Outcome = "neutral"
)

// ParseOutcome приводит значение поля к исходу; все, кроме good и bad, считается нейтральным.
func ParseOutcome(v string) Outcome {
	switch Outcome(v) {
	case OutcomeGood, OutcomeBad:
		return Outcome(v)
	default:
		return OutcomeNeutral
	}
}

// Tone - стиль обсуждения рассказа.
type Tone string

const (
	ToneTrueCrime        Tone = "true-crime"
	ToneNewsReport       Tone = "news-report"
	ToneAudiobook        Tone = "audiobook"
	ToneSupportiveFriend Tone = "supportive-friend"
	ToneTherapist        Tone = "therapist"
)

// Tones - известные тона в порядке отображения.
var Tones = []Tone{ToneTrueCrime, ToneNewsReport, ToneAudiobook, ToneSupportiveFriend, ToneTherapist}

// IsKnown сообщает, входит ли тон в список известных.
func (t Tone) IsKnown() bool {
	for _, k := range Tones {
		if k == t {
			return true
		}
	}
	return false
}

// ErrEmptyResult возвращается, когда генератор вернул пустой текст.
var ErrEmptyResult = errors.New("generator returned empty text")

// SynthesisRequest - входные данные для синтеза обсуждения.
// Input нужен шаблонам, которые ссылаются на данные формы (например, возраст).
type SynthesisRequest struct {
	Narrative string
	Tone      Tone
	Input     map[string]string
}

// NarrativeGenerator создает рассказ по данным формы.
type NarrativeGenerator interface {
	GenerateNarrative(ctx context.Context, input map[string]string) (string, error)
}

// DiscussionSynthesizer создает обсуждение рассказа в выбранном тоне.
type DiscussionSynthesizer interface {
	SynthesizeDiscussion(ctx context.Context, req SynthesisRequest) (string, error)
}
