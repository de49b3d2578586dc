package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const audiobookQuoteRunes = 100

// Placeholder возвращает шаблонные тексты после искусственной задержки.
// Используется, пока не подключена модель, и в демонстрационном режиме.
type Placeholder struct {
	narrativeDelay time.Duration
	synthesisDelay time.Duration
	logger         *zap.Logger
}

// NewPlaceholder создает генератор-заглушку с заданными задержками.
func NewPlaceholder(narrativeDelay, synthesisDelay time.Duration, logger *zap.Logger) *Placeholder {
	return &Placeholder{
		narrativeDelay: narrativeDelay,
		synthesisDelay: synthesisDelay,
		logger:         logger.Named("PlaceholderGenerator"),
	}
}

// GenerateNarrative собирает рассказ из данных формы.
func (p *Placeholder) GenerateNarrative(ctx context.Context, input map[string]string) (string, error) {
	p.logger.Debug("Generating narrative", zap.Int("fields", len(input)))
	if err := sleepCtx(ctx, p.narrativeDelay); err != nil {
		return "", err
	}
	return placeholderNarrative(input), nil
}

// SynthesizeDiscussion возвращает шаблон обсуждения для тона. Блок помощи добавляет декоратор.
func (p *Placeholder) SynthesizeDiscussion(ctx context.Context, req SynthesisRequest) (string, error) {
	p.logger.Debug("Synthesizing discussion", zap.String("tone", string(req.Tone)))
	if err := sleepCtx(ctx, p.synthesisDelay); err != nil {
		return "", err
	}
	if !req.Tone.IsKnown() {
		p.logger.Warn("Unknown tone requested, using generic discussion template", zap.String("tone", string(req.Tone)))
	}
	return placeholderDiscussion(req), nil
}

func placeholderNarrative(in map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is a story about a %s-year-old %s who lives in %s. ",
		in[FieldAge], in[FieldGender], valueOr(in[FieldSettingWhere], "their town"))
	fmt.Fprintf(&b, "The situation started %s. ", valueOr(in[FieldSettingWhen], "one average day"))

	if religion := in[FieldReligion]; religion != "" {
		fmt.Fprintf(&b, "Their %s background sometimes made them feel... [AI would elaborate here].\n\n", religion)
	}

	b.WriteString("One evening, while online, they received a message from a stranger... [The AI would generate the full sextortion scenario here, based on its training data].\n\n")

	switch ParseOutcome(in[FieldOutcome]) {
	case OutcomeGood:
		b.WriteString("Feeling scared, they remembered what they had learned. They immediately blocked the user, told a trusted adult, and did not send anything. It was terrifying, but they knew they did the right thing, and the adult helped them report the account. [AI would provide a trauma-informed 'good' resolution].")
	case OutcomeBad:
		b.WriteString("Panicked, they responded to the message... [The AI would generate a 'bad' outcome, showing the potential consequences, while still being sensitive and not overly graphic, leading to a point where intervention is still possible].")
	default:
		b.WriteString("What happened next was unexpected... [AI would generate a random, neutral, or surprising turn of events].")
	}
	return b.String()
}

func placeholderDiscussion(req SynthesisRequest) string {
	switch req.Tone {
	case ToneTrueCrime:
		return "(Somber music fades in and out) \n\"On this episode of 'The Digital Shadow,' we look at a case that's all too common. It started, as it so often does, with a simple message... [AI would narrate the story in a dramatic, 'true crime' podcast style]...\""
	case ToneNewsReport:
		return fmt.Sprintf("(Neutral, authoritative tone) \n\"Tonight, a developing story on the dangers facing teens online. We have a scenario involving a %s-year-old... [AI would read the story like a news anchor, focusing on the facts]...\"", req.Input[FieldAge])
	case ToneAudiobook:
		return fmt.Sprintf("(Calm, narrative voice) \n\"Chapter 1. %s... [AI would simply read the story verbatim, like an audiobook]...\"", firstRunes(req.Narrative, audiobookQuoteRunes))
	case ToneSupportiveFriend:
		return "(Warm, empathetic tone) \n\"Hey, thanks for sharing that. Wow, that sounds like it was an incredibly stressful and scary situation. It makes total sense why they felt... [AI would discuss the story events from an empathetic, validating, peer perspective]...\""
	case ToneTherapist:
		return "(Calm, professional, non-judgmental tone) \n\"Let's unpack what happened in this story. We see the subject exhibiting a very common fear response... [AI would analyze the story using therapeutic and trauma-informed language, focusing on feelings, actions, and coping mechanisms]...\""
	default:
		return "(Thoughtful tone) \n\"Let's talk about this story and what it can teach us about staying safe online... [AI would discuss the story in a general, informative way]...\""
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
