package logkit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	// ErrParseLevel indicates that string given to function ParseLevel can't be parsed to Level.
	ErrParseLevel Error = "string can't be parsed as Level, use: `error`, `warn`, `info`, `debug`"
)

// Error represents package level error related to logging work.
type Error string

func (e Error) Error() string { return string(e) }

// ParseLevel takes the string and tries to parse it to the Level.
func ParseLevel(lvl string) (slog.Level, error) {
	if lvl == "" {
		return slog.LevelInfo, ErrParseLevel
	}

	levels := map[string]slog.Level{
		strings.ToLower(slog.LevelWarn.String()):  slog.LevelWarn,
		strings.ToLower(slog.LevelError.String()): slog.LevelError,
		strings.ToLower(slog.LevelInfo.String()):  slog.LevelInfo,
		strings.ToLower(slog.LevelDebug.String()): slog.LevelDebug,
	}

	level, ok := levels[strings.ToLower(lvl)]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("%s %w", lvl, ErrParseLevel)
	}

	return level, nil
}

// Options represents the configuration options for the logging library.
type Options struct {
	writer io.Writer
	level  *slog.LevelVar

	withSource bool
	withJSON   bool
	withColor  bool
}

// Option represents a function that modifies the configuration options for the logging library.
type Option func(*Options)

// WithWriter changes the writer of the logger to the given one.
func WithWriter(w io.Writer) Option { return func(o *Options) { o.writer = w } }

// WithLevel changes the underlying logging level of slog.Logger to the given on.
func WithLevel(level slog.Level) Option { return func(o *Options) { o.level.Set(level) } }

// WithSource adds the source file position to each log record.
func WithSource() Option { return func(o *Options) { o.withSource = true } }

// WithJSON enables JSON formatting for log messages.
// Takes precedence over WithColor.
func WithJSON() Option { return func(o *Options) { o.withJSON = true } }

// WithColor enables colorized human-readable output, useful for local
// development with a terminal attached.
func WithColor() Option { return func(o *Options) { o.withColor = true } }

// New returns a new *slog.Logger configured with given options.
// Without options it writes text records of Info level and above to os.Stderr.
func New(options ...Option) *slog.Logger {
	o := Options{
		level:  &slog.LevelVar{},
		writer: os.Stderr,
	}

	for _, option := range options {
		option(&o)
	}

	var handler slog.Handler

	switch {
	case o.withJSON:
		handler = slog.NewJSONHandler(o.writer, &slog.HandlerOptions{
			AddSource: o.withSource,
			Level:     o.level,
		})

	case o.withColor:
		handler = tint.NewHandler(o.writer, &tint.Options{
			AddSource:  o.withSource,
			Level:      o.level,
			TimeFormat: time.Kitchen,
		})

	default:
		handler = slog.NewTextHandler(o.writer, &slog.HandlerOptions{
			AddSource: o.withSource,
			Level:     o.level,
		})
	}

	return slog.New(handler)
}

// Nop returns a logger which discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
