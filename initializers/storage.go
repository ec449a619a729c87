package initializers

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/mediashare-backend/blob"
	"github.com/basit/mediashare-backend/store"
)

// NewFileStore returns the record store for cfg.DBDriver. The returned *gorm.DB
// is nil for the memory driver.
func NewFileStore(cfg *Config, log *zap.Logger) (store.FileStore, *gorm.DB, error) {
	if cfg.DBDriver == "memory" {
		log.Warn("using in-memory record store, data is lost on restart")
		return store.NewMemoryStore(), nil, nil
	}

	db, err := OpenDatabase(cfg.DBDriver, cfg.DBURL, log)
	if err != nil {
		return nil, nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, nil, err
	}
	log.Info("database connected and migrated", zap.String("driver", cfg.DBDriver))
	return store.NewGormStore(db), db, nil
}

func NewBlobStore(ctx context.Context, cfg *Config, log *zap.Logger) (blob.Store, error) {
	switch cfg.StorageDriver {
	case "s3":
		client, err := NewS3Client(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			return nil, err
		}
		log.Info("using s3 blob store", zap.String("bucket", cfg.AWSBucket), zap.String("region", cfg.AWSRegion))
		return blob.NewS3Store(client, cfg.AWSBucket), nil
	case "local":
		s, err := blob.NewLocalStore(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		log.Info("using local blob store", zap.String("path", cfg.StoragePath))
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
