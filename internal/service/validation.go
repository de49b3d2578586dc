package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"story-wizard/internal/generation"
	"story-wizard/internal/models"

	"github.com/go-playground/validator/v10"
)

// Допустимый возраст героя, как в форме ввода.
const (
	minAge = 1
	maxAge = 120
)

// newValidator регистрирует проверки формы поверх стандартных тегов.
func newValidator() *validator.Validate {
	v := validator.New()
	// number пропускает только цифры, диапазон проверяется отдельно
	_ = v.RegisterValidation("age", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		return err == nil && n >= minAge && n <= maxAge
	})
	return v
}

// storyForm - данные формы ввода. Обязательны возраст, пол и исход.
type storyForm struct {
	Age          string `validate:"required,number,age"`
	Gender       string `validate:"required,max=50"`
	SettingWhere string `validate:"max=200"`
	SettingWhen  string `validate:"max=200"`
	Religion     string `validate:"max=100"`
	Outcome      string `validate:"required,max=20"`
}

type toneForm struct {
	Tone string `validate:"max=50"`
}

var formFieldNames = map[string]string{
	"Age":          generation.FieldAge,
	"Gender":       generation.FieldGender,
	"SettingWhere": generation.FieldSettingWhere,
	"SettingWhen":  generation.FieldSettingWhen,
	"Religion":     generation.FieldReligion,
	"Outcome":      generation.FieldOutcome,
	"Tone":         "tone",
}

func newStoryForm(input map[string]string) storyForm {
	return storyForm{
		Age:          input[generation.FieldAge],
		Gender:       input[generation.FieldGender],
		SettingWhere: input[generation.FieldSettingWhere],
		SettingWhen:  input[generation.FieldSettingWhen],
		Religion:     input[generation.FieldReligion],
		Outcome:      input[generation.FieldOutcome],
	}
}

// normalizeInput оставляет только известные поля формы с обрезанными пробелами.
func normalizeInput(input map[string]string) map[string]string {
	known := []string{
		generation.FieldAge, generation.FieldGender, generation.FieldSettingWhere,
		generation.FieldSettingWhen, generation.FieldReligion, generation.FieldOutcome,
	}
	out := make(map[string]string, len(known))
	for _, k := range known {
		if v := strings.TrimSpace(input[k]); v != "" {
			out[k] = v
		}
	}
	return out
}

// validationError переводит ошибки валидатора в models.ErrInvalidInput с перечнем полей.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := formFieldNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", name))
		case "number":
			msgs = append(msgs, fmt.Sprintf("%s must be a number", name))
		case "age":
			msgs = append(msgs, fmt.Sprintf("%s must be between %d and %d", name, minAge, maxAge))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s is too long", name))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", name))
		}
	}
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(msgs, "; "))
}
