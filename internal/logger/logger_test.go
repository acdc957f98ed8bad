package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)
	defer l.Close()

	assert.NotNil(t, l)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "verbose", Console: true})
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "info", l.GetZerolog().GetLevel().String())
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "docuchat.log")

	l, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	l.Info().Msg("hello from test")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestLevelMethods(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docuchat.log")

	l, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)

	l.Debug().Msg("debug line")
	l.Info().Msg("info line")
	l.Warn().Msg("warn line")
	l.Error().Msg("error line")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, line := range []string{"debug line", "info line", "warn line", "error line"} {
		assert.Contains(t, string(data), line)
	}
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
	}{
		{"openai key", "calling with sk-abcdefghijklmnopqrstuvwxyz123456"},
		{"anthropic key", "auth sk-ant-REDACTED"},
		{"tavily key", "search with tvly-abcdefghijklmnopqrstuvwxyz"},
		{"bearer token", "header Bearer eyJhbGciOiJIUzI1NiJ9.abc"},
		{"password", `password="hunter2"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Redact(tt.input)
			assert.Contains(t, out, "[REDACTED]")
		})
	}
}

func TestRedactor_PassesCleanText(t *testing.T) {
	r := NewRedactor()
	assert.Equal(t, "indexed 12 fragments", r.Redact("indexed 12 fragments"))
}

func TestRedactingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	_, err := w.Write([]byte("key sk-abcdefghijklmnopqrstuvwxyz123456 used"))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "sk-abcdefghijklmnop")
	assert.Contains(t, buf.String(), "[REDACTED]")
}
