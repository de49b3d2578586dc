package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI.
var ErrAIGenerationFailed = errors.New("ai text generation failed")

// Типы клиентов.
const (
	TypeOpenAI = "openai"
	TypeOllama = "ollama"
)

// GenerationParams - параметры генерации.
// Указатели нужны, чтобы отличить 0/0.0 от отсутствия значения.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client интерфейс для взаимодействия с AI API.
type Client interface {
	// GenerateText генерирует текст на основе системного промта и ввода пользователя.
	// purpose попадает в метки метрик (narrative, synthesis).
	GenerateText(ctx context.Context, purpose, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// Config - настройки подключения к AI API.
type Config struct {
	Type    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient создает клиента нужного типа.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	log := logger.Named("AIClient")
	switch strings.ToLower(cfg.Type) {
	case TypeOpenAI:
		openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
		openaiConfig.BaseURL = cfg.BaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		log.Info("OpenAI client created",
			zap.String("base_url", cfg.BaseURL),
			zap.String("model", cfg.Model),
			zap.Duration("timeout", cfg.Timeout))
		return &openAIClient{
			client: openaigo.NewClientWithConfig(openaiConfig),
			model:  cfg.Model,
			logger: log,
		}, nil
	case TypeOllama:
		return newOllamaClient(cfg, log)
	default:
		return nil, fmt.Errorf("unknown AI client type: '%s'", cfg.Type)
	}
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
