package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"sieforeagent/internal/config"
)

// Commands log JSON by default. The console copy goes to stderr because commands
// print their reports on stdout.

var (
	processLogger *slog.Logger
	processOnce   sync.Once

	logFile   *os.File
	logFileMu sync.Mutex
)

type traceIDKey struct{}

// InitializeLogger builds the process logger from cfg and installs it as
// the slog default. Later calls return the first logger.
func InitializeLogger(cfg config.LoggingConfig, logsDir string) (*slog.Logger, error) {
	var err error
	processOnce.Do(func() {
		var out io.Writer
		if out, err = logOutput(cfg, logsDir); err != nil {
			return
		}
		processLogger = newLogger(out, cfg.Level, cfg.Format, cfg.Development)
		slog.SetDefault(processLogger)
	})
	if err != nil {
		return nil, err
	}
	return Logger(), nil
}

// Logger returns the process logger, or the slog default before
// InitializeLogger has run.
func Logger() *slog.Logger {
	if processLogger == nil {
		return slog.Default()
	}
	return processLogger
}

// NewLogger builds a JSON logger writing to w, for tests and callers that
// own their output.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return newLogger(w, level, "json", false)
}

// newLogger writes JSON unless format is "text".
func newLogger(w io.Writer, level, format string, addSource bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource:   addSource,
		Level:       parseLogLevel(level),
		ReplaceAttr: replaceAttr,
	}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&traceHandler{Handler: handler})
}

// replaceAttr writes timestamps in UTC and renders Stringer values such as
// periods ("2024-10") as text rather than as JSON objects.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	switch {
	case a.Key == slog.TimeKey && len(groups) == 0:
		return slog.Time(slog.TimeKey, a.Value.Time().UTC())
	case a.Value.Kind() == slog.KindAny:
		if _, isErr := a.Value.Any().(error); isErr {
			return a
		}
		if s, ok := a.Value.Any().(fmt.Stringer); ok {
			return slog.String(a.Key, s.String())
		}
	}
	return a
}

func logOutput(cfg config.LoggingConfig, logsDir string) (io.Writer, error) {
	mode := strings.ToLower(cfg.Output)
	if mode == "console" {
		return os.Stderr, nil
	}

	name := cfg.FileName
	if name == "" {
		name = "siefore.log"
	}
	f, err := openLogFile(filepath.Join(logsDir, name))
	if err != nil {
		return nil, err
	}
	logFileMu.Lock()
	logFile = f
	logFileMu.Unlock()

	if mode == "file" {
		return f, nil
	}
	return io.MultiWriter(os.Stderr, f), nil
}

// traceHandler adds trace_id to every record logged with a context. A run
// ID set with WithTraceID wins over the active span.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithTraceID tags ctx so every record logged with it carries id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// GetTraceID returns the ID set by WithTraceID, or "".
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// CloseLogFile closes the log file opened by InitializeLogger.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
