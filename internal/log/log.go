package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	logger   zerolog.Logger
	once     sync.Once
	out      io.Writer = os.Stderr
	console  bool
	minLevel = LevelInfo
)

// initLogger builds the global logger writing to stderr with timestamps.
func initLogger() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		rebuild()
	})
}

// rebuild must be called with mu held.
func rebuild() {
	w := out
	if console {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger = zerolog.New(w).With().Timestamp().Logger().Level(toZerolog(minLevel))
}

// ParseLevel maps a config string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
	rebuild()
}

// SetOutput redirects log lines. Tests use this to silence or capture output.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// SetConsole switches between JSON lines (false) and human readable output.
func SetConsole(enabled bool) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	console = enabled
	rebuild()
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, nil, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, nil, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, err, msg, kv...)
}

func logWithLevel(level Level, err error, msg string, kv ...any) {
	initLogger()
	mu.RLock()
	l := logger
	mu.RUnlock()

	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.Debug()
	case LevelError:
		ev = l.Error().Err(err)
	default:
		ev = l.Info()
	}
	if ev == nil {
		return
	}
	if fields := toFields(kv...); len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

// toFields expects kv as pairs: key, value, key, value, ...
// Non-string keys are skipped and an odd trailing value is ignored.
func toFields(kv ...any) map[string]any {
	if len(kv) < 2 {
		return nil
	}
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// gormWriter satisfies gorm's logger.Writer by forwarding to Debug.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	Debug("gorm", "detail", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// GormWriter returns a Printf-style sink for the ORM logger.
func GormWriter() interface{ Printf(string, ...any) } {
	return gormWriter{}
}
