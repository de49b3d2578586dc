package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIClient реализует Client с использованием go-openai.
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, purpose, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	log := c.logger.With(zap.String("model", c.model), zap.String("purpose", purpose))

	if strings.TrimSpace(systemPrompt) == "" {
		observeRequest(c.model, purpose, "error")
		return "", usageInfo, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	startTime := time.Now()
	log.Debug("Sending request to AI",
		zap.Int("system_prompt_bytes", len(systemPrompt)),
		zap.Int("user_input_bytes", len(userInput)))

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Warn("AI API returned error", zap.Duration("duration", duration), zap.Error(err))
		observeRequest(c.model, purpose, "error")
		return "", usageInfo, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn("AI API returned empty response", zap.Duration("duration", duration))
		observeRequest(c.model, purpose, "error_empty_response")
		return "", usageInfo, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	usageInfo.PromptTokens = resp.Usage.PromptTokens
	usageInfo.CompletionTokens = resp.Usage.CompletionTokens
	usageInfo.TotalTokens = resp.Usage.TotalTokens

	observeRequest(c.model, purpose, "success")
	observeUsage(c.model, purpose, duration.Seconds(), usageInfo)

	generatedText := resp.Choices[0].Message.Content
	log.Info("AI response received",
		zap.Duration("duration", duration),
		zap.Int("response_length", len(generatedText)),
		zap.Int("total_tokens", usageInfo.TotalTokens))
	return generatedText, usageInfo, nil
}
