package generation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"story-wizard/internal/generation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSynthesizer struct {
	text string
	err  error
}

func (s stubSynthesizer) SynthesizeDiscussion(context.Context, generation.SynthesisRequest) (string, error) {
	return s.text, s.err
}

func TestSupportResources_Literal(t *testing.T) {
	assert.True(t, strings.HasPrefix(generation.SupportResources, "\n\n=================================================="))
	assert.Contains(t, generation.SupportResources, "**Important Support & Resources:**")
	assert.Contains(t, generation.SupportResources, "* **Kids Help Phone:** Call 1-800-668-6868 or text CONNECT to 686868. \n")
	assert.True(t, strings.HasSuffix(generation.SupportResources, "* **Local Police:** If you feel you are in immediate danger, call 911."))
}

func TestWithSupportResources_Idempotent(t *testing.T) {
	once := generation.WithSupportResources("text")
	assert.Equal(t, "text"+generation.SupportResources, once)
	assert.Equal(t, once, generation.WithSupportResources(once))
	assert.Equal(t, generation.SupportResources, generation.WithSupportResources(""))
}

func TestEnsureSupportResources_OnError(t *testing.T) {
	boom := errors.New("model unavailable")
	syn := generation.EnsureSupportResources(stubSynthesizer{err: boom})

	out, err := syn.SynthesizeDiscussion(context.Background(), generation.SynthesisRequest{Tone: generation.ToneTrueCrime})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, generation.SupportResources, out)
}

func TestEnsureSupportResources_DoesNotDoubleWrap(t *testing.T) {
	inner := generation.EnsureSupportResources(stubSynthesizer{text: "hello"})
	outer := generation.EnsureSupportResources(inner)
	assert.Same(t, inner, outer)

	out, err := outer.SynthesizeDiscussion(context.Background(), generation.SynthesisRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, generation.SupportResources))
}
