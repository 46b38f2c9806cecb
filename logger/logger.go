// Package logger is the process-wide structured logger. Calls take a message
// followed by alternating keys and values:
//
//	logger.Info("Request routed", "service", name, "target", target)
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string // debug, info, warn, error
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool // JSON console output instead of the human encoder
}

var (
	mu      sync.RWMutex
	sugar   *zap.SugaredLogger
	base    *zap.Logger
	rotator *lumberjack.Logger
)

func init() {
	if err := Init(Options{Level: "info"}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: default init failed: %v\n", err)
	}
}

// Init replaces the global logger. Console output always goes to stderr; when
// File is set a JSON copy is written there through lumberjack.
func Init(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCfg := encCfg
	var consoleEnc zapcore.Encoder
	if opts.JSON {
		consoleEnc = zapcore.NewJSONEncoder(consoleCfg)
	} else {
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(consoleCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	var fileOut *lumberjack.Logger
	if opts.File != "" {
		fileOut = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(fileOut), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	old, oldFile := base, rotator
	base = l
	sugar = l.Sugar()
	rotator = fileOut
	mu.Unlock()

	if old != nil {
		_ = old.Sync()
	}
	if oldFile != nil {
		_ = oldFile.Close()
	}
	return nil
}

// ParseLevel accepts the usual level names; empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return level, nil
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(msg string, kv ...any) { current().Debugw(msg, kv...) }
func Info(msg string, kv ...any)  { current().Infow(msg, kv...) }
func Warn(msg string, kv ...any)  { current().Warnw(msg, kv...) }
func Error(msg string, kv ...any) { current().Errorw(msg, kv...) }

// File returns the active rotating file writer, or nil when logging only to
// the console.
func File() *lumberjack.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return rotator
}

// Sync flushes buffered entries. Call before exit.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
