package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stefando/uploadpresigner/internal/upload"
)

// MinioConfig holds the connection details for a MinIO (or any S3-compatible) server.
type MinioConfig struct {
	// Endpoint is either host:port or a full URL; an https scheme enables TLS.
	Endpoint     string
	Region       string
	UsePathStyle bool
	Credentials  Credentials
}

// MinioGateway drives multipart uploads through minio-go's low-level Core API.
type MinioGateway struct {
	core *minio.Core
}

var _ upload.Gateway = (*MinioGateway)(nil)

// NewMinioGateway creates a MinIO client. Without static keys the credentials
// are taken from the AWS_* or MINIO_* environment variables.
func NewMinioGateway(cfg MinioConfig) (*MinioGateway, error) {
	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if cfg.Credentials.static() {
		creds = credentials.NewStaticV4(cfg.Credentials.AccessKeyID, cfg.Credentials.SecretAccessKey, cfg.Credentials.SessionToken)
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		})
	}

	lookup := minio.BucketLookupAuto
	if cfg.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	// Setting the region keeps Presign from issuing a GetBucketLocation call.
	core, err := minio.NewCore(host, &minio.Options{
		Creds:        creds,
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioGateway{core: core}, nil
}

// splitEndpoint turns "https://minio.local:9000" into ("minio.local:9000", true)
func splitEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("minio endpoint cannot be empty")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse minio endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("minio endpoint %q has no host", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

// CreateMultipartUpload starts a new upload session and returns its upload ID
func (g *MinioGateway) CreateMultipartUpload(ctx context.Context, bucket, key, contentType string) (string, error) {
	uploadID, err := g.core.NewMultipartUpload(ctx, bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", mapError(err)
	}
	return uploadID, nil
}

// SignPartUploadURL presigns a PUT for one part with the uploadId and partNumber query parameters
func (g *MinioGateway) SignPartUploadURL(ctx context.Context, bucket, key, uploadID string, partNumber int, expiresIn time.Duration) (string, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(partNumber))
	params.Set("uploadId", uploadID)

	u, err := g.core.Presign(ctx, http.MethodPut, bucket, key, expiresIn, params)
	if err != nil {
		return "", mapError(err)
	}
	return u.String(), nil
}

// CompleteMultipartUpload stitches the uploaded parts into the final object
func (g *MinioGateway) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []upload.CompletedPart) (upload.CompletedUpload, error) {
	completeParts := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: p.PartNumber,
			ETag:       p.ETag,
		})
	}

	info, err := g.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return upload.CompletedUpload{}, mapError(err)
	}

	return upload.CompletedUpload{
		Location:  info.Location,
		VersionID: info.VersionID,
		ETag:      info.ETag,
	}, nil
}

// AbortMultipartUpload cancels an in-progress upload and frees its parts
func (g *MinioGateway) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	return mapError(g.core.AbortMultipartUpload(ctx, bucket, key, uploadID))
}
