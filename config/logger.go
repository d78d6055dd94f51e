package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a debug-level JSON logger writing to <dataDir>/debug.log
// when debug is set, and a no-op logger otherwise. The returned close
// function flushes and closes the log file.
func NewLogger(dataDir string, debug bool) (*zap.Logger, func(), error) {
	if !debug {
		return zap.NewNop(), func() {}, nil
	}

	logPath := filepath.Join(dataDir, "debug.log")
	// 0600: prompts and replies end up in the log
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open debug log %s: %w", logPath, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)
	logger := zap.New(core, zap.AddCaller())
	logger.Debug("debug logging started", zap.String("path", logPath))

	return logger, func() {
		_ = logger.Sync()
		_ = f.Close()
	}, nil
}
