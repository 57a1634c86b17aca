// Package logging provides the structured, leveled logger threaded through every component of
// hrtcore: Sublogger for per-component names, context-aware Cxxxw methods, a single stdout or
// in-memory appender, no cloud log shipping.
package logging

import (
	"context"
	"fmt"
	"os"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is the interface every component accepts at construction time.
type Logger interface {
	Sublogger(subname string) Logger

	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})
	CInfow(ctx context.Context, msg string, keysAndValues ...interface{})
	CWarnw(ctx context.Context, msg string, keysAndValues ...interface{})
	CErrorw(ctx context.Context, msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	Level() Level

	Sync() error
}

// Level is a logging verbosity threshold.
type Level int

// Verbosity thresholds, lowest to highest.
const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) zap() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type impl struct {
	name      string
	level     *zap.AtomicLevel
	appenders []zapcore.Core
}

// NewLoggerConfig returns the base zap encoder config used by every constructor below. It
// disables stacktraces and colors levels.
func NewLoggerConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func newStdoutCore(level zap.AtomicLevel) zapcore.Core {
	encoder := zapcore.NewConsoleEncoder(NewLoggerConfig())
	return zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level)
}

// NewLogger returns a new logger that outputs Info+ logs to stdout.
func NewLogger(name string) Logger {
	level := zap.NewAtomicLevelAt(INFO.zap())
	return &impl{name: name, level: &level, appenders: []zapcore.Core{newStdoutCore(level)}}
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout.
func NewDebugLogger(name string) Logger {
	level := zap.NewAtomicLevelAt(DEBUG.zap())
	return &impl{name: name, level: &level, appenders: []zapcore.Core{newStdoutCore(level)}}
}

// NewTestLogger returns a new logger suitable for use inside a testing.TB, discarding output
// reasoning about level filtering but keeping the usual leveled call sites working.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also exposes an in-memory observer so tests can
// assert on emitted log entries.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	level := zap.NewAtomicLevelAt(DEBUG.zap())
	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	return &impl{name: tb.Name(), level: &level, appenders: []zapcore.Core{observerCore}}, observedLogs
}

func (imp *impl) zap() *zap.SugaredLogger {
	core := zapcore.NewTee(imp.appenders...)
	return zap.New(core).Sugar().Named(imp.name)
}

// enabled reports whether msgLevel should be emitted given the logger's current threshold. This
// is checked in Go rather than relying solely on each appender's own level enabler, since a
// Sublogger shares its parent's appenders (and thus would otherwise share their level too).
func (imp *impl) enabled(msgLevel Level) bool {
	return msgLevel.zap() >= imp.level.Level()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	level := zap.NewAtomicLevelAt(imp.level.Level())
	return &impl{name: name, level: &level, appenders: imp.appenders}
}

func (imp *impl) SetLevel(level Level) { imp.level.SetLevel(level.zap()) }

func (imp *impl) Level() Level {
	switch imp.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

func (imp *impl) Debugw(msg string, kv ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.zap().Debugw(msg, kv...)
	}
}

func (imp *impl) Infow(msg string, kv ...interface{}) {
	if imp.enabled(INFO) {
		imp.zap().Infow(msg, kv...)
	}
}

func (imp *impl) Warnw(msg string, kv ...interface{}) {
	if imp.enabled(WARN) {
		imp.zap().Warnw(msg, kv...)
	}
}

func (imp *impl) Errorw(msg string, kv ...interface{}) {
	if imp.enabled(ERROR) {
		imp.zap().Errorw(msg, kv...)
	}
}

func (imp *impl) CDebugw(_ context.Context, msg string, kv ...interface{}) { imp.Debugw(msg, kv...) }
func (imp *impl) CInfow(_ context.Context, msg string, kv ...interface{})  { imp.Infow(msg, kv...) }
func (imp *impl) CWarnw(_ context.Context, msg string, kv ...interface{})  { imp.Warnw(msg, kv...) }
func (imp *impl) CErrorw(_ context.Context, msg string, kv ...interface{}) { imp.Errorw(msg, kv...) }

func (imp *impl) Sync() error {
	var errs []error
	for _, appender := range imp.appenders {
		if err := appender.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}
