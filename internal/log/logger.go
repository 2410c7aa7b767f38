package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with a component name. Every record carries a
// single component attribute.
type Logger struct {
	*slog.Logger
	base      *slog.Logger // attributes without the component
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Format    string // "text" or "json"
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: "app",
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
}

// ConfigFromEnv reads LOG_LEVEL and LOG_FORMAT on top of the defaults
func ConfigFromEnv(component string) Config {
	cfg := DefaultConfig()
	cfg.Handler = nil
	cfg.Component = component
	cfg.Level = ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Format = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	return cfg
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	var handler slog.Handler
	if config.Handler != nil {
		handler = config.Handler
	} else {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.Format == "json" {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}

	base := slog.New(handler)
	return newLogger(base, config.Component)
}

func newLogger(base *slog.Logger, component string) *Logger {
	l := &Logger{Logger: base, base: base, component: component}
	if component != "" {
		l.Logger = base.With(FieldComponent, component)
	}
	return l
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.baseLogger().With(args...),
		component: l.component,
	}
}

// WithComponent returns a new logger with a specific component name,
// replacing the current one
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.baseLogger(), component)
}

func (l *Logger) baseLogger() *slog.Logger {
	if l.base == nil {
		return l.Logger
	}
	return l.base
}

// SetDefault installs logger, minus its component, as the slog default
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.baseLogger())
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

// Default wraps the process-wide slog logger
func Default() *Logger {
	return newLogger(slog.Default(), ComponentApp)
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return New(Config{Handler: slog.NewTextHandler(io.Discard, nil), Component: "test"})
}
