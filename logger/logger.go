package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init builds the process-wide logger. debug enables debug level output.
func Init(debug bool) error {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.Level = level
	SetDebug(debug)

	l, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	Set(l)
	return nil
}

// SetDebug switches the logger built by Init between debug and info level
func SetDebug(debug bool) {
	if debug {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// Set replaces the underlying logger. Tests use it with zaptest or zap.NewNop.
func Set(l *zap.Logger) {
	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes buffered entries.
func Sync() {
	_ = get().Sync()
}

// Info prints an info log
func Info(format string, v ...interface{}) {
	get().Infof(format, v...)
}

// Debug prints a debug log, only emitted when debug mode is on
func Debug(format string, v ...interface{}) {
	get().Debugf(format, v...)
}

// Warn prints a warning log
func Warn(format string, v ...interface{}) {
	get().Warnf(format, v...)
}

// Error prints an error log
func Error(format string, v ...interface{}) {
	get().Errorf(format, v...)
}
