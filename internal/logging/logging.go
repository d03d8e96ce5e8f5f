// Package logging builds the zap loggers used across the module.
package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-entity-repository/config"
)

// New builds a named logger from cfg: JSON for machines, console for humans.
func New(cfg config.LogConfig, name string, outputs ...string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = consoleConfig()
	case "json", "":
		zc = jsonConfig()
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = outputs
	zc.ErrorOutputPaths = outputs

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	if name != "" {
		logger = logger.Named(name)
	}
	return logger, nil
}

func jsonConfig() zap.Config {
	hostname, _ := os.Hostname()

	return zap.Config{
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "lvl",
			NameKey:        "service",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "trace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		InitialFields: map[string]any{"host": hostname},
	}
}

func consoleConfig() zap.Config {
	return zap.Config{
		Development: true,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			NameKey:    "service",
			MessageKey: "message",

			TimeKey:    "time",
			EncodeTime: consoleTimeEncoder,

			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalColorLevelEncoder,

			CallerKey:      "caller",
			EncodeCaller:   zapcore.ShortCallerEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
}

func consoleTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("02/01 15:04:05"))
}
