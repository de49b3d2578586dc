package generation

import (
	"context"
	"fmt"
	"strings"

	"story-wizard/internal/ai"

	"go.uber.org/zap"
)

// Метки назначения запроса для метрик AI-клиента.
const (
	purposeNarrative = "narrative"
	purposeSynthesis = "synthesis"
)

// profileFields - порядок полей профиля в промте.
var profileFields = []struct {
	key   string
	label string
}{
	{FieldAge, "Age"},
	{FieldGender, "Gender"},
	{FieldSettingWhere, "Where they live"},
	{FieldSettingWhen, "When it started"},
	{FieldReligion, "Religious or cultural background"},
}

// AIGenerator реализует оба генератора поверх ai.Client.
type AIGenerator struct {
	client          ai.Client
	tokenizer       *ai.Tokenizer
	catalog         *Catalog
	maxPromptTokens int
	temperature     float64
	logger          *zap.Logger
}

// NewAIGenerator создает генератор на основе AI-клиента и каталога промтов.
func NewAIGenerator(client ai.Client, tokenizer *ai.Tokenizer, catalog *Catalog, maxPromptTokens int, temperature float64, logger *zap.Logger) *AIGenerator {
	return &AIGenerator{
		client:          client,
		tokenizer:       tokenizer,
		catalog:         catalog,
		maxPromptTokens: maxPromptTokens,
		temperature:     temperature,
		logger:          logger.Named("AIGenerator"),
	}
}

func (g *AIGenerator) params() ai.GenerationParams {
	temp := g.temperature
	maxTokens := g.catalog.MaxTokens
	p := ai.GenerationParams{Temperature: &temp}
	if maxTokens > 0 {
		p.MaxTokens = &maxTokens
	}
	return p
}

// GenerateNarrative запрашивает рассказ у модели.
func (g *AIGenerator) GenerateNarrative(ctx context.Context, input map[string]string) (string, error) {
	outcome := ParseOutcome(input[FieldOutcome])
	system := g.catalog.NarrativeSystem
	if instr := g.catalog.OutcomeInstruction(outcome); instr != "" {
		system += "\n\n" + instr
	}

	text, usage, err := g.client.GenerateText(ctx, purposeNarrative, system, buildProfilePrompt(input), g.params())
	if err != nil {
		return "", fmt.Errorf("narrative generation: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	g.logger.Debug("Narrative generated",
		zap.String("outcome", string(outcome)),
		zap.Int("total_tokens", usage.TotalTokens))
	return text, nil
}

// SynthesizeDiscussion запрашивает обсуждение рассказа в выбранном тоне.
// Блок помощи здесь не добавляется, это делает EnsureSupportResources.
func (g *AIGenerator) SynthesizeDiscussion(ctx context.Context, req SynthesisRequest) (string, error) {
	instr, known := g.catalog.ToneInstruction(req.Tone)
	if !known {
		g.logger.Warn("Unknown tone requested, using generic instruction", zap.String("tone", string(req.Tone)))
	}
	system := g.catalog.SynthesisSystem + "\n\n" + instr

	narrative := req.Narrative
	if g.tokenizer != nil && g.maxPromptTokens > 0 {
		if n := g.tokenizer.Count(narrative); n > g.maxPromptTokens {
			g.logger.Info("Narrative exceeds prompt budget, truncating",
				zap.Int("tokens", n), zap.Int("limit", g.maxPromptTokens))
			narrative = g.tokenizer.Truncate(narrative, g.maxPromptTokens)
		}
	}

	var user strings.Builder
	if age := req.Input[FieldAge]; age != "" {
		fmt.Fprintf(&user, "The main character is %s years old.\n\n", age)
	}
	user.WriteString("Story:\n")
	user.WriteString(narrative)

	text, _, err := g.client.GenerateText(ctx, purposeSynthesis, system, user.String(), g.params())
	if err != nil {
		return "", fmt.Errorf("discussion synthesis: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

func buildProfilePrompt(input map[string]string) string {
	var b strings.Builder
	b.WriteString("Character profile:\n")
	for _, f := range profileFields {
		if v := strings.TrimSpace(input[f.key]); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", f.label, v)
		}
	}
	fmt.Fprintf(&b, "- Desired outcome: %s\n", ParseOutcome(input[FieldOutcome]))
	return b.String()
}
