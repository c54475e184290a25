package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects how diagnostics are rendered.
type Format string

const (
	// FormatText writes one human-readable line per event, without timestamps
	FormatText Format = "text"
	// FormatJSON writes one JSON object per event
	FormatJSON Format = "json"
)

// Logger wraps zap.Logger for the command line and the packages it drives.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format Format
	Silent bool
	Output io.Writer // os.Stderr when nil
}

// DefaultConfig returns text diagnostics at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatText,
	}
}

// New creates a logger from cfg. A silent logger discards everything,
// whatever the other settings say.
func New(cfg Config) (*Logger, error) {
	if cfg.Silent {
		return NewNop(), nil
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	return &Logger{Logger: zap.New(core)}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Zap().Named(name)}
}

// Zap exposes the underlying logger for packages that take *zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func newEncoder(format Format) (zapcore.Encoder, error) {
	switch Format(strings.ToLower(string(format))) {
	case "", FormatText:
		return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			LevelKey:         "level",
			NameKey:          "logger",
			MessageKey:       "message",
			LineEnding:       zapcore.DefaultLineEnding,
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			EncodeName:       zapcore.FullNameEncoder,
			EncodeDuration:   zapcore.StringDurationEncoder,
			ConsoleSeparator: " ",
		}), nil
	case FormatJSON:
		return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "message",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
