// Package storage implements the multipart upload control plane on top of
// S3-compatible object stores. Two gateways are provided: S3Gateway on the
// AWS SDK (AWS S3, Cloudflare R2, any endpoint that speaks SigV4) and
// MinioGateway on minio-go for self-hosted MinIO deployments.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stefando/uploadpresigner/internal/upload"
)

// S3Config holds the connection details for an S3-compatible endpoint.
type S3Config struct {
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for R2 or a local MinIO.
	Endpoint     string
	UsePathStyle bool
	Credentials  Credentials
}

// S3Gateway drives multipart uploads through the AWS SDK. It is safe for
// concurrent use and meant to be created once per process.
type S3Gateway struct {
	client  *s3.Client
	presign *s3.PresignClient
}

var _ upload.Gateway = (*S3Gateway)(nil)

// NewS3Gateway loads AWS configuration and creates the S3 and presign clients
func NewS3Gateway(ctx context.Context, cfg S3Config) (*S3Gateway, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.Credentials)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3GatewayFromClient(client), nil
}

// NewS3GatewayFromClient wraps an already configured S3 client
func NewS3GatewayFromClient(client *s3.Client) *S3Gateway {
	return &S3Gateway{
		client:  client,
		presign: s3.NewPresignClient(client),
	}
}

// CreateMultipartUpload starts a new upload session and returns its upload ID
func (g *S3Gateway) CreateMultipartUpload(ctx context.Context, bucket, key, contentType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	resp, err := g.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", mapError(err)
	}
	if resp.UploadId == nil {
		return "", fmt.Errorf("backend returned no upload id for %q", key)
	}
	return *resp.UploadId, nil
}

// SignPartUploadURL presigns a PUT for exactly one part. Nothing is cached:
// every call produces a freshly signed URL.
func (g *S3Gateway) SignPartUploadURL(ctx context.Context, bucket, key, uploadID string, partNumber int, expiresIn time.Duration) (string, error) {
	uploadPartReq := &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		PartNumber: aws.Int32(int32(partNumber)),
		UploadId:   aws.String(uploadID),
	}

	presignReq, err := g.presign.PresignUploadPart(ctx, uploadPartReq, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", mapError(err)
	}
	return presignReq.URL, nil
}

// CompleteMultipartUpload stitches the uploaded parts into the final object
func (g *S3Gateway) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []upload.CompletedPart) (upload.CompletedUpload, error) {
	completeResp, err := g.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: toCompletedParts(parts),
		},
	})
	if err != nil {
		return upload.CompletedUpload{}, mapError(err)
	}

	return upload.CompletedUpload{
		Location:  aws.ToString(completeResp.Location),
		VersionID: aws.ToString(completeResp.VersionId),
		ETag:      aws.ToString(completeResp.ETag),
	}, nil
}

// AbortMultipartUpload cancels an in-progress upload and frees its parts
func (g *S3Gateway) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := g.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	return mapError(err)
}

// toCompletedParts converts the client manifest to the SDK format, keeping its order
func toCompletedParts(parts []upload.CompletedPart) []types.CompletedPart {
	out := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		out = append(out, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(int32(p.PartNumber)),
		})
	}
	return out
}
