package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "wizard.log")

	log, err := New(Config{Level: "debug", Encoding: "json", OutputPath: out})
	require.NoError(t, err)

	log.Info("session created")
	_ = log.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"session created"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", OutputPath: filepath.Join(t.TempDir(), "x.log")})
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.DebugLevel), "debug must be disabled after fallback")
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel), "info must stay enabled")
}

func TestNormalizeEncoding(t *testing.T) {
	assert.Equal(t, "console", normalizeEncoding("Console"))
	assert.Equal(t, "json", normalizeEncoding(""))
	assert.Equal(t, "json", normalizeEncoding("xml"))
}
