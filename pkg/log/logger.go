package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"

	// LogFileLayout is the time layout of run log file names, e.g. Oct_28_2022_14_03_59.
	LogFileLayout = "Jan_02_2006_15_04_05"

	lineTimeLayout = "2006-01-02 15:04:05"
)

// SetupLogger installs a JSON slog handler on w as the process default.
// It is used for diagnostics that happen outside a run, such as CLI argument errors.
func SetupLogger(loglevel string, w io.Writer) error {
	level, ok := ParseLevel(loglevel)
	if !ok {
		return errors.NewValidationError("log_level", "must be one of debug, info, warn, error", loglevel)
	}
	ops := slog.HandlerOptions{
		Level: slog.Level(level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	}
	slog.SetDefault(slog.New(WrapWithStack(slog.NewJSONHandler(w, &ops))))
	return nil
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// RunLogger writes the log file of one pipeline run. It is created at process
// start and must be closed at process end.
type RunLogger struct {
	zl     zerolog.Logger
	file   *os.File
	path   string
	name   string
	level  Level
	closed bool
}

// RunLoggerOption configures a RunLogger.
type RunLoggerOption func(*runLoggerConfig)

type runLoggerConfig struct {
	level   Level
	console io.Writer
	prefix  string
}

// WithLevel sets the minimum level written. Default: LevelInfo.
func WithLevel(level Level) RunLoggerOption {
	return func(c *runLoggerConfig) { c.level = level }
}

// WithConsole mirrors every record to w. Colour is enabled only when w is a terminal.
func WithConsole(w io.Writer) RunLoggerOption {
	return func(c *runLoggerConfig) { c.console = w }
}

// WithFilePrefix overrides the log file name prefix. Default: the logger name.
func WithFilePrefix(prefix string) RunLoggerOption {
	return func(c *runLoggerConfig) { c.prefix = prefix }
}

// NewRunLogger creates dir if needed and opens <prefix>_<Mon_DD_YYYY_HH_MM_SS>.log
// inside it, truncating an existing file of the same name.
func NewRunLogger(dir, name string, now time.Time, opts ...RunLoggerOption) (*RunLogger, error) {
	cfg := &runLoggerConfig{level: LevelInfo, prefix: name}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create log directory %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", cfg.prefix, now.Format(LogFileLayout)))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", path)
	}

	var out io.Writer = lineWriter(file, name, true)
	if cfg.console != nil {
		out = zerolog.MultiLevelWriter(out, lineWriter(cfg.console, name, !isTerminal(cfg.console)))
	}

	zl := zerolog.New(out).Level(toZerologLevel(cfg.level)).With().Timestamp().Logger()
	return &RunLogger{
		zl:    zl,
		file:  file,
		path:  path,
		name:  name,
		level: cfg.level,
	}, nil
}

// NewWriterLogger builds a RunLogger over an arbitrary writer, without a file.
func NewWriterLogger(w io.Writer, name string, level Level) *RunLogger {
	zl := zerolog.New(lineWriter(w, name, true)).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &RunLogger{zl: zl, name: name, level: level}
}

// Path returns the log file path, empty for writer loggers.
func (l *RunLogger) Path() string {
	return l.path
}

// RouteWarnings sends library warnings (convergence, undefined metrics) to this logger.
func (l *RunLogger) RouteWarnings() {
	errors.SetZerologWarnFunc(func(w error) {
		ev := l.zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", m)
		}
		ev.Msg(w.Error())
	})
}

// Close flushes and closes the log file and detaches the warning route.
func (l *RunLogger) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	errors.SetZerologWarnFunc(nil)
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return errors.Wrap(err, "sync log file")
	}
	return l.file.Close()
}

// Debug implements Logger.Debug.
func (l *RunLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *RunLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *RunLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *RunLogger) Error(msg string, fields ...any) {
	ev := l.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Err(err)
			fields = fields[1:]
		}
	}
	l.emit(ev, msg, fields)
}

// With implements Logger.With.
func (l *RunLogger) With(fields ...any) Logger {
	child := *l
	child.zl = l.zl.With().Fields(normalizeFields(fields)).Logger()
	// Children share the file; only the root closes it.
	child.file = nil
	child.closed = true
	return &child
}

// Enabled implements Logger.Enabled.
func (l *RunLogger) Enabled(_ context.Context, level Level) bool {
	return level >= l.level
}

func (l *RunLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		ev = ev.Fields(normalizeFields(fields))
	}
	ev.Msg(msg)
}

// normalizeFields stringifies keys and expands marshalable errors so that
// typed pipeline errors keep their structure in the log.
func normalizeFields(fields []any) []any {
	out := make([]any, 0, len(fields))
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if i+1 >= len(fields) {
			out = append(out, "!BADKEY", key)
			break
		}
		value := fields[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		out = append(out, key, value)
	}
	return out
}

// lineWriter renders records as "<time> - <name> - <LEVEL>: <message> key=value ...".
func lineWriter(w io.Writer, name string, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatTimestamp: func(i interface{}) string {
			s, _ := i.(string)
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				s = ts.Format(lineTimeLayout)
			}
			return s + " - " + name + " -"
		},
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			return strings.ToUpper(s) + ":"
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("%s", i)
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
