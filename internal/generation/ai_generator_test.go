package generation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"story-wizard/internal/ai"
	"story-wizard/internal/generation"
	"story-wizard/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAIGenerator(client ai.Client) *generation.AIGenerator {
	return generation.NewAIGenerator(client, ai.NewTokenizer("test-model", zap.NewNop()), generation.DefaultCatalog(), 0, 0.7, zap.NewNop())
}

func TestAIGenerator_GenerateNarrative(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	cat := generation.DefaultCatalog()

	client.On("GenerateText", mock.Anything, "narrative",
		mock.MatchedBy(func(system string) bool {
			return strings.HasPrefix(system, cat.NarrativeSystem) && strings.Contains(system, cat.Outcomes["good"])
		}),
		mock.MatchedBy(func(user string) bool {
			return strings.Contains(user, "- Age: 15\n") && strings.Contains(user, "- Desired outcome: good\n") &&
				!strings.Contains(user, "Religious")
		}),
		mock.AnythingOfType("ai.GenerationParams"),
	).Return("  the story  ", ai.UsageInfo{TotalTokens: 10}, nil).Once()

	text, err := newAIGenerator(client).GenerateNarrative(context.Background(), map[string]string{
		"age": "15", "gender": "female", "outcome": "good",
	})
	require.NoError(t, err)
	assert.Equal(t, "the story", text)
	client.AssertExpectations(t)
}

func TestAIGenerator_Errors(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	client.On("GenerateText", mock.Anything, "narrative", mock.Anything, mock.Anything, mock.Anything).
		Return("", ai.UsageInfo{}, ai.ErrAIGenerationFailed).Once()
	client.On("GenerateText", mock.Anything, "synthesis", mock.Anything, mock.Anything, mock.Anything).
		Return("   ", ai.UsageInfo{}, nil).Once()

	g := newAIGenerator(client)

	_, err := g.GenerateNarrative(context.Background(), map[string]string{"age": "15"})
	assert.True(t, errors.Is(err, ai.ErrAIGenerationFailed))

	_, err = g.SynthesizeDiscussion(context.Background(), generation.SynthesisRequest{Narrative: "n", Tone: generation.ToneTherapist})
	assert.ErrorIs(t, err, generation.ErrEmptyResult)
}

func TestAIGenerator_SynthesisWithDecorator(t *testing.T) {
	client := mocks.NewMockAIClient(t)
	cat := generation.DefaultCatalog()

	client.On("GenerateText", mock.Anything, "synthesis",
		mock.MatchedBy(func(system string) bool { return strings.Contains(system, cat.GenericTone) }),
		mock.MatchedBy(func(user string) bool {
			return strings.Contains(user, "14 years old") && strings.HasSuffix(user, "Story:\nthe narrative")
		}),
		mock.Anything,
	).Return("a discussion", ai.UsageInfo{}, nil).Once()

	syn := generation.EnsureSupportResources(newAIGenerator(client))
	out, err := syn.SynthesizeDiscussion(context.Background(), generation.SynthesisRequest{
		Narrative: "the narrative", Tone: "opera", Input: map[string]string{"age": "14"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a discussion"+generation.SupportResources, out)
	client.AssertExpectations(t)
}
