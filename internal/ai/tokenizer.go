package ai

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// runesPerToken - грубая оценка, когда кодировка недоступна.
const runesPerToken = 4

// Tokenizer считает токены и обрезает текст под лимит промта.
// Кодировка загружается лениво; tiktoken может требовать сеть для загрузки словаря.
type Tokenizer struct {
	model  string
	loader func(model string) (*tiktoken.Tiktoken, error)
	logger *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenizer создает токенизатор для модели.
func NewTokenizer(model string, logger *zap.Logger) *Tokenizer {
	return &Tokenizer{
		model:  model,
		loader: loadEncoding,
		logger: logger.Named("Tokenizer"),
	}
}

func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	return tiktoken.GetEncoding("cl100k_base")
}

func (t *Tokenizer) encoding() *tiktoken.Tiktoken {
	t.once.Do(func() {
		enc, err := t.loader(t.model)
		if err != nil {
			t.logger.Warn("Tokenizer unavailable, falling back to rune estimate",
				zap.String("model", t.model), zap.Error(err))
			return
		}
		t.enc = enc
	})
	return t.enc
}

// Count возвращает число токенов в тексте.
func (t *Tokenizer) Count(text string) int {
	if enc := t.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	n := utf8.RuneCountInString(text)
	return (n + runesPerToken - 1) / runesPerToken
}

// Truncate обрезает текст до maxTokens токенов. maxTokens <= 0 отключает обрезку.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if enc := t.encoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= maxTokens {
			return text
		}
		return enc.Decode(tokens[:maxTokens])
	}
	runes := []rune(text)
	limit := maxTokens * runesPerToken
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
