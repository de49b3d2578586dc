package generation

import (
	"context"
	"strings"
)

// SupportResources - обязательный блок с контактами помощи.
// Добавляется к каждому результату синтеза дословно, в том числе при ошибке.
const SupportResources = "\n\n==================================================\n" +
	"**Important Support & Resources:**\n" +
	"If you or someone you know is in a similar situation, please know you are not alone and help is available. \n" +
	"* **NeedHelpNow.ca:** A Canadian resource for youth to stop the spread of intimate images.\n" +
	"* **Kids Help Phone:** Call 1-800-668-6868 or text CONNECT to 686868. \n" +
	"* **Cybertip.ca:** Canada's tipline for reporting the online sexual exploitation of children.\n" +
	"* **Local Police:** If you feel you are in immediate danger, call 911."

// WithSupportResources добавляет блок помощи, если текст им еще не заканчивается.
func WithSupportResources(text string) string {
	if strings.HasSuffix(text, SupportResources) {
		return text
	}
	return text + SupportResources
}

// supportingSynthesizer гарантирует блок помощи в любом результате синтеза.
type supportingSynthesizer struct {
	next DiscussionSynthesizer
}

// EnsureSupportResources оборачивает синтезатор. При ошибке возвращается
// сам блок помощи вместе с ошибкой, чтобы вызывающий мог показать его пользователю.
func EnsureSupportResources(next DiscussionSynthesizer) DiscussionSynthesizer {
	if s, ok := next.(*supportingSynthesizer); ok {
		return s
	}
	return &supportingSynthesizer{next: next}
}

func (s *supportingSynthesizer) SynthesizeDiscussion(ctx context.Context, req SynthesisRequest) (string, error) {
	text, err := s.next.SynthesizeDiscussion(ctx, req)
	if err != nil {
		return SupportResources, err
	}
	return WithSupportResources(text), nil
}
