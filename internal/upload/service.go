package upload

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// MinPartNumber is the first valid part number of a multipart upload
	MinPartNumber = 1

	// MaxPartNumber is the highest part number S3-compatible backends accept
	MaxPartNumber = 10000

	// DefaultPresignConcurrency bounds parallel signing inside one batch request
	DefaultPresignConcurrency = 8
)

// CompletedUpload holds the optional identity fields a backend returns on completion.
type CompletedUpload struct {
	Location  string
	VersionID string
	ETag      string
}

// Gateway is the object-storage control plane the service drives. Implementations
// must be safe for concurrent use.
type Gateway interface {
	CreateMultipartUpload(ctx context.Context, bucket, key, contentType string) (string, error)
	SignPartUploadURL(ctx context.Context, bucket, key, uploadID string, partNumber int, expiresIn time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (CompletedUpload, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

// Settings is the fixed server-side configuration exposed to clients.
type Settings struct {
	Bucket             string
	Region             string
	Expiration         time.Duration
	PartSizeBytes      int64
	PresignConcurrency int
}

// Service brokers multipart uploads without ever touching file bytes.
type Service struct {
	settings Settings
	gateway  Gateway
	keys     *KeyDeriver
}

// NewService creates a new upload service
func NewService(settings Settings, gateway Gateway, keys *KeyDeriver) *Service {
	if settings.PresignConcurrency <= 0 {
		settings.PresignConcurrency = DefaultPresignConcurrency
	}
	return &Service{
		settings: settings,
		gateway:  gateway,
		keys:     keys,
	}
}

func (s *Service) expiresInSeconds() int {
	return int(s.settings.Expiration / time.Second)
}

// Initiate derives a key for the file and opens a multipart upload for it
func (s *Service) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	key := s.keys.Derive(req.FileName)

	uploadID, err := s.gateway.CreateMultipartUpload(ctx, s.settings.Bucket, key, req.ContentType)
	if err != nil {
		return nil, upstream("initiate upload", err)
	}

	return &InitiateResponse{
		Bucket:                   s.settings.Bucket,
		Region:                   s.settings.Region,
		Key:                      key,
		UploadID:                 uploadID,
		ExpiresInSeconds:         s.expiresInSeconds(),
		RecommendedPartSizeBytes: s.settings.PartSizeBytes,
	}, nil
}

// validateSession checks the (key, uploadId) pair is present. Whether it is
// a live session is for the backend to decide.
func validateSession(key, uploadID string) error {
	if key == "" {
		return invalidf("key cannot be empty")
	}
	if uploadID == "" {
		return invalidf("uploadId cannot be empty")
	}
	return nil
}

func validatePartNumber(partNumber int) error {
	if partNumber < MinPartNumber || partNumber > MaxPartNumber {
		return invalidf("partNumber must be between %d and %d, got %d", MinPartNumber, MaxPartNumber, partNumber)
	}
	return nil
}

// PresignPart signs a PUT URL for a single part
func (s *Service) PresignPart(ctx context.Context, key, uploadID string, partNumber int) (*PresignPartResponse, error) {
	if err := validateSession(key, uploadID); err != nil {
		return nil, err
	}
	if err := validatePartNumber(partNumber); err != nil {
		return nil, err
	}

	url, err := s.gateway.SignPartUploadURL(ctx, s.settings.Bucket, key, uploadID, partNumber, s.settings.Expiration)
	if err != nil {
		return nil, upstream("presign part", err)
	}

	return &PresignPartResponse{
		URL:              url,
		ExpiresInSeconds: s.expiresInSeconds(),
	}, nil
}

// validatePresignPartsRequest rejects the whole batch if any part number is out
// of range. An empty batch is valid and signs nothing.
func validatePresignPartsRequest(req *PresignPartsRequest) error {
	if err := validateSession(req.Key, req.UploadID); err != nil {
		return err
	}
	for _, pn := range req.PartNumbers {
		if err := validatePartNumber(pn); err != nil {
			return err
		}
	}
	return nil
}

// PresignParts signs PUT URLs for every requested part. The result preserves
// request order; any failure discards the whole batch.
func (s *Service) PresignParts(ctx context.Context, req *PresignPartsRequest) (*PresignPartsResponse, error) {
	if err := validatePresignPartsRequest(req); err != nil {
		return nil, err
	}

	parts := make([]PresignedPart, len(req.PartNumbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.PresignConcurrency)
	for i, pn := range req.PartNumbers {
		g.Go(func() error {
			url, err := s.gateway.SignPartUploadURL(gctx, s.settings.Bucket, req.Key, req.UploadID, pn, s.settings.Expiration)
			if err != nil {
				return fmt.Errorf("part %d: %w", pn, err)
			}
			parts[i] = PresignedPart{PartNumber: pn, URL: url}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, upstream("presign parts", err)
	}

	return &PresignPartsResponse{
		Parts:            parts,
		ExpiresInSeconds: s.expiresInSeconds(),
	}, nil
}

// Complete forwards the client's manifest to the backend verbatim
func (s *Service) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	if err := validateSession(req.Key, req.UploadID); err != nil {
		return nil, err
	}
	if len(req.Parts) == 0 {
		return nil, invalidf("parts cannot be empty")
	}
	for _, p := range req.Parts {
		if err := validatePartNumber(p.PartNumber); err != nil {
			return nil, err
		}
	}

	result, err := s.gateway.CompleteMultipartUpload(ctx, s.settings.Bucket, req.Key, req.UploadID, req.Parts)
	if err != nil {
		return nil, upstream("complete upload", err)
	}

	return &CompleteResponse{
		Bucket:    s.settings.Bucket,
		Key:       req.Key,
		Location:  result.Location,
		VersionID: result.VersionID,
		ETag:      result.ETag,
	}, nil
}

// Abort discards the upload session and any parts already stored.
// Aborting a finished session surfaces the backend's error unchanged.
func (s *Service) Abort(ctx context.Context, req *AbortRequest) (*AbortResponse, error) {
	if err := validateSession(req.Key, req.UploadID); err != nil {
		return nil, err
	}

	if err := s.gateway.AbortMultipartUpload(ctx, s.settings.Bucket, req.Key, req.UploadID); err != nil {
		return nil, upstream("abort upload", err)
	}

	return &AbortResponse{Aborted: true}, nil
}
