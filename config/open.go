package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/vecgroup/blobstore"
	"github.com/hupe1980/vecgroup/blobstore/minio"
	"github.com/hupe1980/vecgroup/blobstore/s3"
	"github.com/hupe1980/vecgroup/loader"
)

// OpenStore creates the configured blob store.
func (s Storage) OpenStore(ctx context.Context) (blobstore.Store, error) {
	switch s.Kind {
	case StorageLocal:
		return blobstore.NewLocalStore(s.Path), nil
	case StorageMemory:
		return blobstore.NewMemoryStore(), nil
	case StorageS3:
		optFns := []func(o *s3.Options){s3.WithPrefix(s.Prefix)}
		if s.Region != "" {
			optFns = append(optFns, s3.WithRegion(s.Region))
		}

		if s.Endpoint != "" {
			optFns = append(optFns, s3.WithEndpoint(s.Endpoint))
		}

		store, err := s3.New(ctx, s.Bucket, optFns...)
		if err != nil {
			return nil, err
		}

		return store, nil
	case StorageMinIO:
		creds := credentials.NewEnvMinio()
		if s.AccessKey != "" {
			creds = credentials.NewStaticV4(s.AccessKey, s.SecretKey, "")
		}

		client, err := miniogo.New(s.Endpoint, &miniogo.Options{
			Creds:  creds,
			Secure: s.UseSSL,
			Region: s.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("config: minio client: %w", err)
		}

		return minio.NewStore(client, s.Bucket, s.Prefix), nil
	default:
		return nil, fmt.Errorf("%w: storage kind %q", ErrInvalidConfig, s.Kind)
	}
}

// OpenLoader creates the configured candidate loader. store is used for
// JSON-lines input with FromStorage set.
func (in Input) OpenLoader(store blobstore.Store, logger *slog.Logger) (loader.Loader, error) {
	switch in.Kind {
	case InputSQLite:
		return loader.NewSQLite(in.Path, func(o *loader.SQLiteOptions) {
			if in.Table != "" {
				o.Table = in.Table
			}
			o.Limit = in.Limit
			o.Logger = logger
		}), nil
	case InputJSONL:
		if in.FromStorage {
			return loader.NewJSONLines(store, in.Path, logger), nil
		}

		dir, name := filepath.Split(in.Path)
		if dir == "" {
			dir = "."
		}

		return loader.NewJSONLines(blobstore.NewLocalStore(dir), name, logger), nil
	default:
		return nil, fmt.Errorf("%w: input kind %q", ErrInvalidConfig, in.Kind)
	}
}
