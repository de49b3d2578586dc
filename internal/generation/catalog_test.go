package generation_test

import (
	"os"
	"path/filepath"
	"testing"

	"story-wizard/internal/generation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_MissingFileUsesDefaults(t *testing.T) {
	cat, err := generation.LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	for _, tone := range generation.Tones {
		_, known := cat.ToneInstruction(tone)
		assert.True(t, known, "tone %s", tone)
	}
	instr, known := cat.ToneInstruction("mime")
	assert.False(t, known)
	assert.Equal(t, cat.GenericTone, instr)
}

func TestLoadCatalog_FileOverridesSelectedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_tokens: 123\ntones:\n  therapist: be gentle\n"), 0o600))

	cat, err := generation.LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, 123, cat.MaxTokens)
	instr, _ := cat.ToneInstruction(generation.ToneTherapist)
	assert.Equal(t, "be gentle", instr)
	instr, _ = cat.ToneInstruction(generation.ToneAudiobook)
	assert.Equal(t, generation.DefaultCatalog().Tones["audiobook"], instr)
	assert.NotEmpty(t, cat.NarrativeSystem)
}
