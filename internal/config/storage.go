package config

import (
	"context"
	"flag"
	"snapshot-baseline/internal/storage"

	"golang.org/x/xerrors"
)

const (
	StorageBackendFile = "file"
	StorageBackendS3   = "s3"
)

type StorageConfig struct {
	Backend               string
	Directory             string
	AllowOutsideDirectory bool
	S3Bucket              string
	S3Prefix              string
}

// RegisterFlags binds the storage flags to fs. Defaults come from
// STORAGE_BACKEND, DIRECTORY, ALLOW_OUTSIDE_DIRECTORY, S3_BUCKET and
// S3_PREFIX, so it must run after LoadDotEnv.
func (c *StorageConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Backend, "storage-backend", EnvOrDefaultValue("STORAGE_BACKEND", StorageBackendFile), "Storage backend (file or s3)")
	fs.StringVar(&c.Directory, "directory", EnvOrDefaultValue("DIRECTORY", "."), "Root directory for relative locations with the file backend")
	fs.BoolVar(&c.AllowOutsideDirectory, "allow-outside-directory", EnvOrDefaultValue("ALLOW_OUTSIDE_DIRECTORY", false), "Let the file backend read and write locations outside -directory")
	fs.StringVar(&c.S3Bucket, "s3-bucket", EnvOrDefaultValue("S3_BUCKET", ""), "Bucket for the s3 backend")
	fs.StringVar(&c.S3Prefix, "s3-prefix", EnvOrDefaultValue("S3_PREFIX", ""), "Key prefix for the s3 backend")
}

func (c StorageConfig) Open(ctx context.Context) (storage.Storage, error) {
	switch c.Backend {
	case StorageBackendFile, "":
		s, err := storage.NewFileStorage(ctx, storage.FileConfig{
			Directory:             c.Directory,
			AllowOutsideDirectory: c.AllowOutsideDirectory,
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to create file storage backend: %w", err)
		}
		return s, nil
	case StorageBackendS3:
		s, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: c.S3Bucket,
			Prefix: c.S3Prefix,
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to create S3 storage backend: %w", err)
		}
		return s, nil
	default:
		return nil, xerrors.Errorf("unknown storage backend: %s", c.Backend)
	}
}
