package cmd

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/dlogger"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/metrics"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
	fslocal "github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/localfs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs/objfs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage/gcs"
	storagelocal "github.com/CPU-JIA/Flotilla-sub008/pkg/storage/localfs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage/sthree"
)

// buildFS wires the repository filesystem for the configured backend.
// The adapter choice is made here and nowhere else: everything past this
// point talks to the repofs.FS contract.
func buildFS(ctx context.Context, repo string) (repofs.FS, *zap.Logger, error) {
	if repo == "" {
		return nil, nil, fmt.Errorf("a repository name is required (--repo)")
	}
	logger, err := dlogger.GetConsoleLogger(config.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	collector := metrics.New(prometheus.DefaultRegisterer)

	var inner repofs.FS
	switch config.Backend {
	case "local":
		inner, err = fslocal.New(filepath.Join(config.Root, repo))
		if err != nil {
			return nil, nil, err
		}
	case "objlocal", "s3", "gcs":
		var store storage.Store
		store, err = buildStore(ctx, logger)
		if err != nil {
			return nil, nil, err
		}
		inner, err = objfs.New(store, path.Join(config.Prefix, repo), objfs.Logger(logger))
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (expected local, objlocal, s3 or gcs)", config.Backend)
	}
	return repofs.Instrument(inner, logger, collector), logger, nil
}

// buildStore wires the flat object store for the object backends
func buildStore(ctx context.Context, logger *zap.Logger) (storage.Store, error) {
	switch config.Backend {
	case "objlocal":
		return storagelocal.New(afero.NewBasePathFs(afero.NewOsFs(), config.Root)), nil
	case "s3":
		if config.Bucket == "" {
			return nil, fmt.Errorf("the s3 backend needs a bucket")
		}
		awsConfig := aws.NewConfig()
		if config.Region != "" {
			awsConfig = awsConfig.WithRegion(config.Region)
		}
		if config.Endpoint != "" {
			awsConfig = awsConfig.WithEndpoint(config.Endpoint).WithS3ForcePathStyle(true)
		}
		return sthree.New(sthree.Bucket(config.Bucket), sthree.AWSConfig(awsConfig), sthree.Logger(logger)), nil
	case "gcs":
		if config.Bucket == "" {
			return nil, fmt.Errorf("the gcs backend needs a bucket")
		}
		return gcs.New(ctx, config.Bucket, config.Credential, gcs.Logger(logger))
	default:
		return nil, fmt.Errorf("backend %q has no flat object store", config.Backend)
	}
}
