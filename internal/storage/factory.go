package storage

import (
	"fmt"

	"github.com/spec-kit/support-desk/internal/config"
)

// New selects the backend named by cfg.Driver.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "disk":
		return NewDiskStore(cfg.UploadDir)
	case "s3":
		client := NewS3Client(S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		return NewS3Store(client, cfg.S3Bucket, "attachments/"), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
