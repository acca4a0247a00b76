package store

import (
	"context"
	"fmt"

	"pcc-go/internal/config"
	"pcc-go/internal/pcc"
)

// NewStoreFromConfig creates a BlobStore implementation based on the store
// config type.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig) (pcc.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Name), nil
	case "filesystem":
		if cfg.FSStoreRoot == "" {
			return nil, fmt.Errorf("filesystem store requires fs_store_root to be set")
		}
		return NewFileSystemStore(cfg.Name, cfg.FSStoreRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 store requires s3_bucket to be set")
		}
		return NewS3Store(ctx, cfg.Name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "azure":
		if cfg.AzureContainer == "" {
			return nil, fmt.Errorf("azure store requires azure_container to be set")
		}
		return NewAzureStore(cfg.Name, AzureOptions{
			Container:        cfg.AzureContainer,
			Prefix:           cfg.AzurePrefix,
			ConnectionString: cfg.AzureConnectionString,
			AccountURL:       cfg.AzureAccountURL,
		})
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
