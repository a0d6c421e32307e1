// Package config loads application configuration from environment variables.
//
// Every variable carries the APP_ prefix. A .env file is read first when
// present; variables already set in the environment take precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends understood by the server.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// maxPresignExpiration is the longest lifetime SigV4 allows for a presigned URL.
const maxPresignExpiration = 7 * 24 * time.Hour

// Config holds all runtime configuration for the service. It is built once
// at startup and never mutated afterwards.
type Config struct {
	// Core AWS/S3
	Region string
	Bucket string

	// Upload behaviour
	UploadPrefix          string
	PresignExpiration     time.Duration
	RecommendedPartSizeMB int
	PresignConcurrency    int

	// CORS
	AllowedOrigins []string

	// Optional explicit credentials; the SDK default chain is used when unset
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	RoleARN         string

	// Backend selection (s3 or minio) and S3-compatible endpoint settings
	StorageBackend string
	Endpoint       string
	UsePathStyle   bool

	// HTTP server
	ListenAddr     string
	MountPath      string
	RequestTimeout time.Duration
	MetricsEnabled bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the given .env files (missing files are ignored) and then
// builds the configuration from the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Region: p.str("APP_AWS_REGION", "us-east-1"),
		Bucket: p.str("APP_S3_BUCKET_NAME", ""),

		UploadPrefix:          p.str("APP_UPLOAD_PREFIX", "uploads/"),
		PresignExpiration:     time.Duration(p.integer("APP_PRESIGN_EXPIRATION_SECONDS", 3600)) * time.Second,
		RecommendedPartSizeMB: p.integer("APP_RECOMMENDED_PART_SIZE_MB", 10),
		PresignConcurrency:    p.integer("APP_PRESIGN_CONCURRENCY", 8),

		AllowedOrigins: p.origins("APP_ALLOWED_ORIGINS", []string{"*"}),

		AccessKeyID:     p.str("APP_AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: p.str("APP_AWS_SECRET_ACCESS_KEY", ""),
		SessionToken:    p.str("APP_AWS_SESSION_TOKEN", ""),
		RoleARN:         p.str("APP_AWS_ROLE_ARN", ""),

		StorageBackend: strings.ToLower(p.str("APP_STORAGE_BACKEND", BackendS3)),
		Endpoint:       p.str("APP_S3_ENDPOINT", ""),
		UsePathStyle:   p.boolean("APP_S3_USE_PATH_STYLE", false),

		ListenAddr:     p.str("APP_LISTEN_ADDR", ":8000"),
		MountPath:      p.str("APP_MOUNT_PATH", "/uploads"),
		RequestTimeout: time.Duration(p.integer("APP_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		MetricsEnabled: p.boolean("APP_METRICS_ENABLED", true),

		LogLevel:  p.str("APP_LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(p.str("APP_LOG_FORMAT", "json")),
	}

	if err := errors.Join(append(p.errs, cfg.validate()...)...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, errors.New("APP_S3_BUCKET_NAME is required"))
	}
	if c.PresignExpiration < time.Second || c.PresignExpiration > maxPresignExpiration {
		errs = append(errs, fmt.Errorf("APP_PRESIGN_EXPIRATION_SECONDS must be between 1 and %d", int(maxPresignExpiration.Seconds())))
	}
	if c.RecommendedPartSizeMB < 1 {
		errs = append(errs, errors.New("APP_RECOMMENDED_PART_SIZE_MB must be at least 1"))
	}
	if c.PresignConcurrency < 1 {
		errs = append(errs, errors.New("APP_PRESIGN_CONCURRENCY must be at least 1"))
	}
	if c.RequestTimeout < time.Second {
		errs = append(errs, errors.New("APP_REQUEST_TIMEOUT_SECONDS must be at least 1"))
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		errs = append(errs, errors.New("APP_AWS_ACCESS_KEY_ID and APP_AWS_SECRET_ACCESS_KEY must be set together"))
	}
	switch c.StorageBackend {
	case BackendS3:
	case BackendMinio:
		if c.Endpoint == "" {
			errs = append(errs, errors.New("APP_S3_ENDPOINT is required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("APP_STORAGE_BACKEND must be %q or %q, got %q", BackendS3, BackendMinio, c.StorageBackend))
	}
	if c.MountPath != "" && !strings.HasPrefix(c.MountPath, "/") {
		errs = append(errs, errors.New("APP_MOUNT_PATH must start with /"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("APP_LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	return errs
}

// PartSizeBytes is the recommended part size as exposed to clients.
func (c *Config) PartSizeBytes() int64 {
	return int64(c.RecommendedPartSizeMB) * 1024 * 1024
}

// HasStaticCredentials reports whether explicit keys were configured.
func (c *Config) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// parser collects every malformed value instead of stopping at the first one.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, fallback string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (p *parser) integer(key string, fallback int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (p *parser) boolean(key string, fallback bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

// origins accepts either a JSON array or a comma-separated list
func (p *parser) origins(key string, fallback []string) []string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return fallback
	}

	var list []string
	if strings.HasPrefix(v, "[") {
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: invalid JSON array: %w", key, err))
			return fallback
		}
	} else {
		list = strings.Split(v, ",")
	}

	out := make([]string, 0, len(list))
	for _, o := range list {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
