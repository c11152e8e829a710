// Package log provides the connection manager's structured logging
// setup. The upstream utils/log package this codebase's call sites
// were written against was not available, so this is a small,
// self-contained equivalent built directly on go.uber.org/zap with the
// same call signature (log.New(config, nil)).
package log

import (
	"go.uber.org/zap"
)

// Config configures a logger. Mirrors the shape of a per-package
// Config.Log field (scheduler.Config.Log, scheduler.Config.TorrentLog).
type Config struct {
	// Disable silences all output. Useful for tests.
	Disable bool `yaml:"disable"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// Encoding selects the zap encoder ("json" or "console").
	Encoding string `yaml:"encoding"`
}

func (c Config) applyDefaults() Config {
	if c.Encoding == "" {
		c.Encoding = "json"
	}
	return c
}

// New creates a new *zap.Logger per config. The second argument
// accepts optional extra zap.Option values.
func New(config Config, opts []zap.Option) (*zap.Logger, error) {
	config = config.applyDefaults()

	if config.Disable {
		return zap.NewNop(), nil
	}

	zc := zap.NewProductionConfig()
	zc.Encoding = config.Encoding
	if config.Debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return zc.Build(opts...)
}

// NewNop returns a logger which discards all output, for use in tests
// and fixtures that don't care about log output.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
