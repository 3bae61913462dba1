package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process logger; a no-op until Init runs.
var Log = zap.NewNop()

// Init builds the JSON logger for the given level ("debug", "info", "warn",
// "error"; anything else means info), installs it globally and returns it.
func Init(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zapcore.InfoLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.TimeKey = "ts"

	l, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    map[string]any{"service": "oolshik-notify"},
	}.Build()
	if err != nil {
		panic(err)
	}

	Log = l
	zap.ReplaceGlobals(l)
	return l
}
