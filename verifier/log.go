package verifier

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/timefmt-go"
)

// LogLevel represents the severity level for logs.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// LookupLogLevel resolves a level name, case-insensitively. "warning" is
// accepted for warn.
func LookupLogLevel(s string) (LogLevel, bool) {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "INFO":
		return LevelInfo, true
	case "DEBUG":
		return LevelDebug, true
	}
	return LevelWarn, false
}

// ParseLogLevel is LookupLogLevel falling back to warn.
func ParseLogLevel(s string) LogLevel {
	l, _ := LookupLogLevel(s)
	return l
}

// DefaultLogTimeFormat is the strftime layout of log timestamps.
const DefaultLogTimeFormat = "%Y-%m-%dT%H:%M:%SZ"

// Fields the analyser attaches to its loggers. They are rendered as a
// location prefix rather than as key=value pairs.
const (
	fieldMethod  = "method"
	fieldSession = "session"
	fieldBlock   = "block"
)

// Logger receives the analyser's progress. A session logger carries the
// method and session id; each block simulator adds its block label.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a child logger carrying additional fields.
	With(fields map[string]any) Logger
}

// textFormatter writes one line per record:
//
//	[LEVEL] ts method#session block: msg key=val ...
type textFormatter struct {
	timeFormat string
}

func newTextFormatter(timeFormat string) *textFormatter {
	return &textFormatter{timeFormat: timeFormat}
}

func (f *textFormatter) format(ts time.Time, level LogLevel, msg string, fields map[string]any) []byte {
	var b strings.Builder
	b.Grow(128)

	b.WriteByte('[')
	b.WriteString(level.String())
	b.WriteString("] ")
	if f.timeFormat != "" {
		b.WriteString(timefmt.Format(ts.UTC(), f.timeFormat))
		b.WriteByte(' ')
	}

	if loc := location(fields); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		switch k {
		case fieldMethod, fieldSession, fieldBlock:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(safeSprint(fields[k]))
	}

	b.WriteByte('\n')
	return []byte(b.String())
}

// location renders method#session followed by the block label.
func location(fields map[string]any) string {
	var b strings.Builder
	if m, ok := fields[fieldMethod]; ok {
		b.WriteString(fmt.Sprint(m))
	}
	if s, ok := fields[fieldSession]; ok {
		fmt.Fprintf(&b, "#%v", s)
	}
	if blk, ok := fields[fieldBlock]; ok {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(fmt.Sprint(blk))
	}
	return b.String()
}

func safeSprint(v any) string {
	switch t := v.(type) {
	case string:
		if strings.IndexFunc(t, func(r rune) bool { return r <= ' ' }) >= 0 {
			return fmt.Sprintf("%q", t)
		}
		return t
	case fmt.Stringer:
		return safeSprint(t.String())
	default:
		return fmt.Sprint(v)
	}
}

// defaultLogger writes formatted records to a shared writer. Child loggers
// created by With share the writer lock.
type defaultLogger struct {
	out       io.Writer
	level     LogLevel
	formatter *textFormatter
	fields    map[string]any
	mu        *sync.Mutex
}

// NewLogger creates a logger writing records at or above level to w
// (os.Stderr when nil). An empty timeFormat omits timestamps.
func NewLogger(level LogLevel, w io.Writer, timeFormat string) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &defaultLogger{
		out:       w,
		level:     level,
		formatter: newTextFormatter(timeFormat),
		mu:        &sync.Mutex{},
	}
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

func (l noopLogger) With(map[string]any) Logger {
	return l
}

// NopLogger returns a logger that discards all output.
func NopLogger() Logger { return noopLogger{} }

func (l *defaultLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	child := *l
	child.fields = merged
	return &child
}

func (l *defaultLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *defaultLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *defaultLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *defaultLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *defaultLogger) logf(level LogLevel, format string, args ...any) {
	if level > l.level {
		return
	}
	line := l.formatter.format(time.Now(), level, fmt.Sprintf(format, args...), l.fields)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}
