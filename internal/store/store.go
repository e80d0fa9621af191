package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/config"
)

// Open returns the repository selected by cfg.Driver.
func Open(cfg config.StorageConfig, logger *zap.Logger) (Repository, error) {
	switch cfg.Driver {
	case config.StorageMemory, "":
		return NewMemory(), nil
	case config.StorageSQLite:
		return OpenSQLite(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
