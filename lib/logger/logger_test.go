package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	} {
		assert.Equal(t, want, Level(in), in)
	}
}

func TestInitWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer

	InitWriter("warn", &buf)

	Get().Info().Msg("hidden")
	assert.Empty(t, buf.String())

	Get().Warn().Str("chain", "eth").Msg("shown")
	assert.Contains(t, buf.String(), `"chain":"eth"`)
	assert.Contains(t, buf.String(), `"message":"shown"`)
}
