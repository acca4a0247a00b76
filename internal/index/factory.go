package index

import (
	"fmt"
	"os"
	"path/filepath"

	"pcc-go/internal/config"
	"pcc-go/internal/pcc"
)

// NewIndexFromConfig creates a LocalIndex implementation based on the index
// config type. Type "none" returns a nil index; the service treats that as
// "always miss".
func NewIndexFromConfig(cfg config.IndexConfig, projectID string) (pcc.LocalIndex, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite index")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating index data dir: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, projectID+".db")
		return NewSQLiteIndex(dbPath)
	case "memory":
		return NewSQLiteIndex(":memory:")
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}
