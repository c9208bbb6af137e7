// Package logging builds the diagnostic zap logger. The terminal belongs to
// the chat, so diagnostics always go to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mixlab-ai/mixlab/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultPath returns ~/.local/share/mixlab/mixlab.log.
func DefaultPath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mixlab.log"), nil
}

// New builds a production JSON logger writing to cfg.File (or DefaultPath).
// verbose forces debug level regardless of cfg.Level.
func New(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	path := cfg.File
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve log path: %w", err)
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = lvl
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewOrNop is New but degrades to a no-op logger, returning the reason.
func NewOrNop(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	l, err := New(cfg, verbose)
	if err != nil {
		return zap.NewNop(), err
	}
	return l, nil
}
