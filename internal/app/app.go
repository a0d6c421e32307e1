// Package app assembles the service from configuration: storage gateway,
// upload service, metrics and router. Both the HTTP server and the Lambda
// entry point build their handler through here.
package app

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/stefando/uploadpresigner/internal/api"
	"github.com/stefando/uploadpresigner/internal/config"
	"github.com/stefando/uploadpresigner/internal/metrics"
	"github.com/stefando/uploadpresigner/internal/storage"
	"github.com/stefando/uploadpresigner/internal/upload"
)

// NewGateway creates the storage gateway selected by cfg.StorageBackend
func NewGateway(ctx context.Context, cfg *config.Config) (upload.Gateway, error) {
	creds := storage.Credentials{
		AccessKeyID:         cfg.AccessKeyID,
		SecretAccessKey:     cfg.SecretAccessKey,
		SessionToken:        cfg.SessionToken,
		RoleARN:             cfg.RoleARN,
		RoleSessionDuration: cfg.PresignExpiration,
	}

	switch cfg.StorageBackend {
	case config.BackendMinio:
		gw, err := storage.NewMinioGateway(storage.MinioConfig{
			Endpoint:     cfg.Endpoint,
			Region:       cfg.Region,
			UsePathStyle: cfg.UsePathStyle,
			Credentials:  creds,
		})
		if err != nil {
			return nil, fmt.Errorf("init minio gateway: %w", err)
		}
		return gw, nil
	case config.BackendS3:
		gw, err := storage.NewS3Gateway(ctx, storage.S3Config{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
			Credentials:  creds,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 gateway: %w", err)
		}
		return gw, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// NewService creates the upload service on top of gw
func NewService(cfg *config.Config, gw upload.Gateway) *upload.Service {
	return upload.NewService(upload.Settings{
		Bucket:             cfg.Bucket,
		Region:             cfg.Region,
		Expiration:         cfg.PresignExpiration,
		PartSizeBytes:      cfg.PartSizeBytes(),
		PresignConcurrency: cfg.PresignConcurrency,
	}, gw, upload.NewKeyDeriver(cfg.UploadPrefix))
}

// NewHandler wires gw into a fully configured router. Metrics are attached
// when enabled in cfg.
func NewHandler(cfg *config.Config, gw upload.Gateway, log logrus.FieldLogger) *chi.Mux {
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		gw = m.InstrumentGateway(gw)
	}

	return api.NewRouter(api.Options{
		Service:        NewService(cfg, gw),
		Logger:         log,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		MountPath:      cfg.MountPath,
		RequestTimeout: cfg.RequestTimeout,
	})
}

// Build creates the gateway from cfg and returns the ready router
func Build(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*chi.Mux, error) {
	gw, err := NewGateway(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewHandler(cfg, gw, log), nil
}
