// Package logging holds the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var global *zap.SugaredLogger

// Init configures the global logger. With an empty file it logs to the
// console; otherwise it writes JSON to a size-rotated log file.
func Init(level, file string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	if file == "" {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
		logger, err := cfg.Build()
		if err != nil {
			return err
		}
		global = logger.Sugar()
		return nil
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
	})
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		sink,
		zapLevel,
	)
	global = zap.New(core).Sugar()
	return nil
}

// L returns the global logger, falling back to a development logger when
// Init has not run (tests, library use).
func L() *zap.SugaredLogger {
	if global == nil {
		logger, _ := zap.NewDevelopment()
		global = logger.Sugar()
	}
	return global
}

// Sync flushes buffered entries.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
