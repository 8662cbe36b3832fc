// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process zap logger from LogConfig.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdiddy/medref/pkg/types"
)

// Defaults applied by New to empty LogConfig fields.
const (
	DefaultLevel      = "info"
	DefaultFormat     = "console"
	DefaultOutput     = "console"
	DefaultFile       = "logs/medref.log"
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
)

// New returns a logger writing to stderr, a rotated file, or both.
// Console output goes to stderr so that JSON results on stdout stay clean.
func New(cfg types.LogConfig) (*zap.Logger, error) {
	cfg = withDefaults(cfg)

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q: must be console or json", cfg.Format)
	}

	var sinks []zapcore.WriteSyncer
	switch cfg.Output {
	case "console":
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	case "file":
		sinks = append(sinks, fileSink(cfg))
	case "both":
		sinks = append(sinks, zapcore.Lock(os.Stderr), fileSink(cfg))
	default:
		return nil, fmt.Errorf("invalid log output %q: must be console, file or both", cfg.Output)
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func withDefaults(cfg types.LogConfig) types.LogConfig {
	if cfg.Level == "" {
		cfg.Level = DefaultLevel
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	if cfg.File == "" {
		cfg.File = DefaultFile
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	return cfg
}

func fileSink(cfg types.LogConfig) zapcore.WriteSyncer {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warning: creating log directory: %v\n", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	})
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
