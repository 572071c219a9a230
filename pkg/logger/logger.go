// Package logger builds the structured zap loggers shared by the API server and the CLI
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string
	Format      string
	Development bool
	// OutputPaths lists extra files to tee log output into; stdout is always written.
	OutputPaths []string
	// Stderr writes to stderr instead of stdout.
	Stderr bool
}

// New creates a new logger instance
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	console := os.Stdout
	if cfg.Stderr {
		console = os.Stderr
	}
	syncers := []zapcore.WriteSyncer{zapcore.AddSync(console)}
	for _, path := range cfg.OutputPaths {
		if path == "" || path == "stdout" {
			continue
		}
		sink, _, err := zap.Open(path)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, sink)
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)

	options := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		options = append(options, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, options...), nil
}

// Must is New for entrypoints that cannot continue without a logger.
func Must(cfg Config) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}
