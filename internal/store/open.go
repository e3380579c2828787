package store

import (
	"fmt"

	"github.com/desertthunder/splitify/internal/shared"
)

// Open builds the backend selected by cfg.
func Open(cfg shared.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case shared.BackendSQLite:
		return OpenSQLiteStore(cfg.Path)
	case shared.BackendFile:
		return NewFileStore(cfg.Path), nil
	case shared.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}
