// Package telemetry provides the module's structured logging wrapper: a
// package-level zap.Logger configurable from an environment variable, plus
// a handful of domain helpers for logging link and frame events.
package telemetry

import (
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar controls logging verbosity when Initialize is called with
// an empty level. When unset, logging is silent (no zap output) so that a
// library consumer embedding this module doesn't get unsolicited log spam.
const LogLevelEnvVar = "BHTLINK_LOG_LEVEL"

// Initialize builds the package-level logger at the given level. If level
// is empty, it falls back to LogLevelEnvVar, and if that's unset too, logs
// are discarded.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("telemetry: failed to initialize logger: %w", err)
	}
	logger = built
	return nil
}

// Logger returns the package-level logger, falling back to a silent logger
// if Initialize was never called.
func Logger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// LogLinkStateChange logs a link engine state transition.
func LogLinkStateChange(address string, from, to string) {
	Logger().Info("link state change",
		zap.String("address", address),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogFrameDiscarded logs a single discarded frame along with the reason.
func LogFrameDiscarded(reason string, msgid byte) {
	Logger().Warn("frame discarded",
		zap.String("reason", reason),
		zap.String("msgid", fmt.Sprintf("%#02x", msgid)),
	)
}

// LogRawFrame logs the raw bytes of a frame, hex-dumped, at debug level.
func LogRawFrame(label string, data []byte) {
	Logger().Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > 256 {
		return hex.EncodeToString(data[:256]) + "..."
	}
	return hex.EncodeToString(data)
}

// Sync flushes any buffered log entries; call it once at process exit.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
