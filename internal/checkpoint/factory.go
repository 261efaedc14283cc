package checkpoint

import (
	"fmt"

	"alphaminer/internal/config"
	"alphaminer/internal/logging"
	"alphaminer/internal/miner"
)

// NewStore creates the checkpoint store selected by configuration. When the
// Redis backend is unreachable it falls back to the file backend so a
// transient infrastructure problem never blocks a mining run.
func NewStore(cfg config.CheckpointConfig) (miner.CheckpointStore, error) {
	switch cfg.Backend {
	case "redis":
		store, err := NewRedisStore(cfg.Redis)
		if err == nil {
			return store, nil
		}
		logging.WithError(err).Warn("Redis checkpoint backend unavailable, falling back to file")
		return NewFileStore(cfg.File.Path)
	case "file", "":
		return NewFileStore(cfg.File.Path)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %s", cfg.Backend)
	}
}
