// Package logging configures the process-wide zap logger.
//
// Console output always goes to stderr: stdout carries the MCP stdio
// transport when the server runs in stdio mode.
package logging

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level, format and optional rotated file output.
type Config struct {
	Level       string `koanf:"level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	Format      string `koanf:"format" validate:"omitempty,oneof=console json"`
	ServiceName string `koanf:"service_name"`
	AddSource   bool   `koanf:"add_source"`
	LogFile     string `koanf:"log_file"`
	MaxSize     int    `koanf:"max_size" validate:"gte=0"`
	MaxBackups  int    `koanf:"max_backups" validate:"gte=0"`
	MaxAge      int    `koanf:"max_age" validate:"gte=0"`
	Compress    bool   `koanf:"compress"`
}

var globalLogger atomic.Pointer[zap.Logger]

// Initialize builds the logger described by cfg, installs it as the zap
// global and redirects the standard library logger into it.
func Initialize(cfg Config) *zap.Logger {
	return initialize(cfg, zapcore.Lock(os.Stderr))
}

func initialize(cfg Config, console zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil || cfg.Level == "" {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(cfg.Format), console, level)}
	if cfg.LogFile != "" {
		// Files are always JSON.
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), fileWriter, level))
	}

	options := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		options = append(options, zap.AddCaller())
	}
	logger := zap.New(zapcore.NewTee(cores...), options...)
	if cfg.ServiceName != "" {
		logger = logger.Named(cfg.ServiceName)
	}

	globalLogger.Store(logger)
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)
	return logger
}

func encoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// Get returns the initialized logger, or a no-op logger before Initialize.
func Get() *zap.Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Sync flushes buffered entries.
func Sync() {
	if l := globalLogger.Load(); l != nil {
		// stderr sync fails with EINVAL on some platforms; nothing useful to do.
		if err := l.Sync(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to sync logger:", err)
		}
	}
}
