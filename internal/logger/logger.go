package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures an optional rotated log file next to stdout.
type FileOptions struct {
	Enable   bool
	Filename string
}

// New creates a new structured logger
func New(env string) (*zap.Logger, error) {
	return NewWithFile(env, FileOptions{})
}

// NewWithFile creates a structured logger that also writes JSON to a rotated file when enabled
func NewWithFile(env string, file FileOptions) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Always log to stdout for container compatibility
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	// Ensure structured JSON format in production
	if env == "production" {
		config.Encoding = "json"
	}

	if file.Enable && file.Filename != "" {
		return newTee(config, file), nil
	}

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return logger, nil
}

func newTee(config zap.Config, file FileOptions) *zap.Logger {
	rotator := &lumberjack.Logger{
		Filename:   file.Filename,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
		Compress:   false,
	}

	var stdoutEncoder zapcore.Encoder
	if config.Encoding == "json" {
		stdoutEncoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		stdoutEncoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			config.Level,
		),
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), config.Level),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// NewWithDefaults creates a logger with default settings
func NewWithDefaults() *zap.Logger {
	env := os.Getenv("SERVER_ENV")
	if env == "" {
		env = "development"
	}

	logger, err := New(env)
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
