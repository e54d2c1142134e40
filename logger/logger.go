package logger

import (
	"log"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base *zap.Logger
	mu   sync.RWMutex
)

func init() {
	base = zap.NewNop()
}

// Init builds the process logger. level is one of debug, info, warn, error.
func Init(level string, development bool) error {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	base = built
	mu.Unlock()
	return nil
}

// Replace swaps the process logger, e.g. for an observer in tests.
func Replace(l *zap.Logger) {
	mu.Lock()
	base = l
	mu.Unlock()
}

// Named returns a sugared logger for a component, e.g. Named("recognition").
func Named(component string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(component).Sugar()
}

// StdLog bridges libraries that want a *log.Logger (gorm's logger).
func StdLog(component string) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return zap.NewStdLog(base.Named(component))
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
