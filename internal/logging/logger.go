package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Level   string
	LogFile string
	// Color is auto, always or never
	Color string
	// Console defaults to os.Stderr
	Console io.Writer
}

// NoColor resolves the color mode. auto defers to fatih/color's terminal
// detection, which honors NO_COLOR and TERM=dumb.
func (c Config) NoColor() bool {
	switch strings.ToLower(c.Color) {
	case "always":
		return false
	case "never":
		return true
	default:
		return color.NoColor
	}
}

// NewLogger creates a zerolog logger writing to the console and, when
// LogFile is set, to a rotating file
func NewLogger(cfg Config) *zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := parseLevel(cfg.Level)

	out := cfg.Console
	if out == nil {
		out = os.Stderr
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        newProgressSafeWriter(out),
		TimeFormat: "15:04:05",
		NoColor:    cfg.NoColor(),
	}

	writers := []io.Writer{consoleWriter}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &logger
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewTestLogger creates a logger for testing that writes to a buffer
func NewTestLogger(w io.Writer) *zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &logger
}

// progressSafeWriter serializes console writes and clears the current
// terminal line first, so log lines do not land in the middle of a
// download progress bar
type progressSafeWriter struct {
	mu        sync.Mutex
	w         io.Writer
	lineStart bool
}

func newProgressSafeWriter(w io.Writer) *progressSafeWriter {
	return &progressSafeWriter{w: w, lineStart: true}
}

const clearLine = "\r\x1b[K"

func (p *progressSafeWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(b) == 0 {
		return 0, nil
	}
	if p.lineStart {
		if _, err := io.WriteString(p.w, clearLine); err != nil {
			return 0, err
		}
	}
	n, err := p.w.Write(b)
	if n > 0 {
		p.lineStart = b[n-1] == '\n'
	}
	return n, err
}
