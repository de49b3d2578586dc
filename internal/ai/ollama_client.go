package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg Config, logger *zap.Logger) (Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	ollamaBaseURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", ollamaBaseURL, err)
	}

	logger.Info("Ollama client created",
		zap.String("base_url", ollamaBaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout))

	return &ollamaClient{
		client:  api.NewClient(parsedURL, httpClient),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, purpose, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	log := c.logger.With(zap.String("model", c.model), zap.String("purpose", purpose))

	if strings.TrimSpace(systemPrompt) == "" {
		observeRequest(c.model, purpose, "error")
		return "", usageInfo, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	requestCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	log.Debug("Sending request to Ollama",
		zap.Int("system_prompt_bytes", len(systemPrompt)),
		zap.Int("user_input_bytes", len(userInput)))

	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Duration("duration", duration))
		} else {
			log.Warn("Ollama API returned error", zap.Duration("duration", duration), zap.Error(err))
		}
		observeRequest(c.model, purpose, "error")
		return "", usageInfo, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		log.Warn("Ollama API returned empty response", zap.Duration("duration", duration))
		observeRequest(c.model, purpose, "error_empty_response")
		return "", usageInfo, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount

	observeRequest(c.model, purpose, "success")
	observeUsage(c.model, purpose, duration.Seconds(), usageInfo)

	log.Info("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("response_length", len(resp.Message.Content)))
	return resp.Message.Content, usageInfo, nil
}
