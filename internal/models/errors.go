package models

import "errors"

// Ошибки уровня приложения.
var (
	// Сессии
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is busy")

	// Запросы
	ErrBadRequest        = errors.New("malformed request")
	ErrInvalidInput      = errors.New("invalid input data")
	ErrInvalidTransition = errors.New("action is not allowed on the current screen")

	// Генерация
	ErrGenerationInProgress = errors.New("generation is already in progress for this form")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrGenerationTimeout    = errors.New("generation timed out")
	ErrGenerationCancelled  = errors.New("generation cancelled")
)

// Коды ошибок для JSON-ответов.
const (
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeSessionNotFound      = "SESSION_NOT_FOUND"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeGenerationInProgress = "GENERATION_IN_PROGRESS"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// Сообщения, которые видит пользователь при неудачной генерации.
const (
	MsgNarrativeFailed     = "We couldn't create your story right now. Please check your answers and try again."
	MsgSynthesisFailed     = "We couldn't create the discussion right now. Please try again."
	MsgGenerationTimeout   = "This is taking longer than expected. Please try again."
	MsgGenerationCancelled = "The generation was interrupted. Please try again."
)
