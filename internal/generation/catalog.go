package generation

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Catalog - системные промты для AI-генератора.
// Загружается из YAML; отсутствующие в файле значения берутся из встроенных.
type Catalog struct {
	NarrativeSystem string            `yaml:"narrative_system"`
	SynthesisSystem string            `yaml:"synthesis_system"`
	GenericTone     string            `yaml:"generic_tone"`
	Tones           map[string]string `yaml:"tones"`
	Outcomes        map[string]string `yaml:"outcomes"`
	MaxTokens       int               `yaml:"max_tokens" env:"AI_MAX_COMPLETION_TOKENS"`
}

// DefaultCatalog возвращает встроенный набор промтов.
func DefaultCatalog() *Catalog {
	return &Catalog{
		NarrativeSystem: "You write short, realistic, age-appropriate educational stories for youth about online sextortion. " +
			"Never include graphic or sexual detail. Write in the third person, in plain prose, 250 to 400 words. " +
			"Use the profile details you are given to ground the setting and the character.",
		SynthesisSystem: "You discuss an educational story about online sextortion with a young reader. " +
			"Stay factual, sensitive and non-graphic. Do not add contact lists or hotline numbers; they are appended separately.",
		GenericTone: "Discuss the story in a calm, general, informative way and highlight what the character could do to stay safe.",
		Tones: map[string]string{
			string(ToneTrueCrime):        "Narrate the story in a dramatic true crime podcast style, opening with a short scene-setting line.",
			string(ToneNewsReport):       "Read the story like a news anchor, neutral and authoritative, focusing on the facts.",
			string(ToneAudiobook):        "Read the story verbatim in a calm narrative voice, like an audiobook chapter.",
			string(ToneSupportiveFriend): "Discuss the events as an empathetic, validating peer who is glad the reader shared the story.",
			string(ToneTherapist):        "Analyze the story using calm, professional, trauma-informed language, focusing on feelings, actions and coping mechanisms.",
		},
		Outcomes: map[string]string{
			string(OutcomeGood):    "End with a trauma-informed good resolution: the character blocks the user, tells a trusted adult, sends nothing and reports the account.",
			string(OutcomeBad):     "Show the potential consequences of engaging, sensitively and without graphic detail, ending at a point where intervention is still possible.",
			string(OutcomeNeutral): "End with an unexpected, neutral or surprising turn of events.",
		},
		MaxTokens: 900,
	}
}

// LoadCatalog читает каталог промтов из YAML-файла поверх встроенных значений.
// Отсутствующий файл не является ошибкой.
func LoadCatalog(path string) (*Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := cleanenv.ReadEnv(cat); err != nil {
				return nil, fmt.Errorf("error reading prompt catalog env: %w", err)
			}
			return cat, nil
		}
		return nil, fmt.Errorf("error checking prompt catalog %s: %w", path, err)
	}
	if err := cleanenv.ReadConfig(path, cat); err != nil {
		return nil, fmt.Errorf("error reading prompt catalog %s: %w", path, err)
	}
	return cat, nil
}

// ToneInstruction возвращает инструкцию для тона. Для неизвестного тона - общая инструкция и false.
func (c *Catalog) ToneInstruction(t Tone) (string, bool) {
	if s, ok := c.Tones[string(t)]; ok && s != "" {
		return s, true
	}
	return c.GenericTone, false
}

// OutcomeInstruction возвращает инструкцию для исхода рассказа.
func (c *Catalog) OutcomeInstruction(o Outcome) string {
	return c.Outcomes[string(o)]
}
