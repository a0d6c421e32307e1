package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	// MinRoleSessionDuration is the minimum duration for AWS STS AssumeRole (15 minutes)
	MinRoleSessionDuration = 15 * time.Minute

	// MaxRoleSessionDuration is the longest session STS grants to a role
	MaxRoleSessionDuration = 12 * time.Hour
)

// Credentials selects how the gateway authenticates against the backend.
// With no static keys the SDK default chain is used (env, shared config, IMDS).
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// RoleARN, when set, wraps the base credentials in an STS AssumeRole provider.
	RoleARN string
	// RoleSessionDuration should cover the presigned URL lifetime, since a
	// presigned URL stops working when its signing credentials expire.
	RoleSessionDuration time.Duration
}

func (c Credentials) static() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// roleSessionDuration clamps the requested duration to the range STS accepts
func (c Credentials) roleSessionDuration() time.Duration {
	d := c.RoleSessionDuration
	if d < MinRoleSessionDuration {
		return MinRoleSessionDuration
	}
	if d > MaxRoleSessionDuration {
		return MaxRoleSessionDuration
	}
	return d
}

// loadAWSConfig builds the SDK configuration shared by the S3 client and its presigner
func loadAWSConfig(ctx context.Context, region string, creds Credentials) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if creds.static() {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}

	if creds.RoleARN != "" {
		// Create session name with a timestamp for traceability in CloudTrail
		sessionName := fmt.Sprintf("upload-presigner-%d", time.Now().Unix())
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), creds.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = sessionName
			o.Duration = creds.roleSessionDuration()
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}
