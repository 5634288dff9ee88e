// Package jsonlog is the structured logger used across the API. It keeps the
// small PrintInfo/PrintError/PrintFatal surface the handlers call and hands the
// actual encoding to zap.
package jsonlog

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string // debug, info, error, fatal, off
	Format string // json, console
}

type Logger struct {
	zl *zap.Logger
}

func New(cfg Config) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "message",
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  "trace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), parseLevel(cfg.Level))

	return &Logger{zl: zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))}
}

// NewWithCore wraps an existing zap core, e.g. an observer in tests.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zl: zap.New(core)}
}

func parseLevel(level string) zapcore.LevelEnabler {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "off":
		return zap.LevelEnablerFunc(func(zapcore.Level) bool { return false })
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) PrintInfo(message string, properties map[string]string) {
	l.zl.Info(message, fields(properties)...)
}

func (l *Logger) PrintError(err error, properties map[string]string) {
	l.zl.Error(err.Error(), fields(properties)...)
}

// PrintFatal logs at fatal level and terminates the process.
func (l *Logger) PrintFatal(err error, properties map[string]string) {
	l.zl.Fatal(err.Error(), fields(properties)...)
}

// Write lets the logger back http.Server.ErrorLog.
func (l *Logger) Write(message []byte) (n int, err error) {
	l.zl.Error(strings.TrimSpace(string(message)))
	return len(message), nil
}

func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func fields(properties map[string]string) []zap.Field {
	if len(properties) == 0 {
		return nil
	}

	fs := make([]zap.Field, 0, len(properties))
	for k, v := range properties {
		fs = append(fs, zap.String(k, v))
	}

	return []zap.Field{zap.Dict("properties", fs...)}
}
