package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("writes to console", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(Config{Level: "info", Color: "never", Console: &buf})
		logger.Info().Str("package", "foo").Msg("installed")

		out := buf.String()
		assert.Contains(t, out, "installed")
		assert.Contains(t, out, "package=foo")
	})

	t.Run("creates log file", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "logs", "qpm.log")

		logger := NewLogger(Config{Level: "info", LogFile: logFile, Color: "never", Console: &buf})
		logger.Info().Msg("to file")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"to file"`)
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(Config{Level: "warn", Color: "never", Console: &buf})
		logger.Info().Msg("hidden")
		logger.Warn().Msg("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestConfigNoColor(t *testing.T) {
	assert.False(t, Config{Color: "always"}.NoColor())
	assert.True(t, Config{Color: "never"}.NoColor())
	assert.True(t, Config{Color: "NEVER"}.NoColor())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info().Str("test", "value").Msg("test message")

	assert.Contains(t, buf.String(), `"message":"test message"`)
	assert.Contains(t, buf.String(), `"test":"value"`)
}

func TestProgressSafeWriter(t *testing.T) {
	t.Run("clears line before each new line", func(t *testing.T) {
		var buf bytes.Buffer
		w := newProgressSafeWriter(&buf)

		n, err := w.Write([]byte("line1\n"))
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		_, _ = w.Write([]byte("line2\n"))

		assert.Equal(t, clearLine+"line1\n"+clearLine+"line2\n", buf.String())
	})

	t.Run("partial line is not cleared mid-way", func(t *testing.T) {
		var buf bytes.Buffer
		w := newProgressSafeWriter(&buf)

		_, _ = w.Write([]byte("part"))
		_, _ = w.Write([]byte("ial\n"))

		assert.Equal(t, clearLine+"partial\n", buf.String())
	})

	t.Run("concurrent writes", func(t *testing.T) {
		var buf bytes.Buffer
		w := newProgressSafeWriter(&buf)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = w.Write([]byte("concurrent\n"))
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, strings.Count(buf.String(), "concurrent\n"))
	})
}
