package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu         sync.Mutex
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
	minLevel             = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	output     io.Writer = os.Stderr
)

// initLogger builds the global logger writing to stderr with timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		build()
	})
}

func build() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(output)),
		minLevel,
	)
	logger = zap.New(core).Sugar()
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// SetOutput redirects log output. Used by tests and by the CLI's -once
// mode, which keeps stdout clean for JSON.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	output = w
	build()
}

// SetLevel changes the minimum level. Unknown levels fall back to INFO.
func SetLevel(l Level) {
	minLevel.SetLevel(toZap(l))
}

// ParseLevel maps a config string ("debug", "warn", ...) to a Level.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, normalizeKVs(kv)...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, normalizeKVs(kv)...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, normalizeKVs(kv)...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, normalizeKVs(kv)...)
	current().Errorw(msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = current().Sync()
}

func toZap(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// normalizeKVs keeps string-keyed pairs only. zap treats a stray key as a
// DPANIC, so malformed call sites are dropped here instead.
func normalizeKVs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
