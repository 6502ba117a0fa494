package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

const noSuchKey = "NoSuchKey"

// S3Config configures the object-storage location cache.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3LocationCache keeps one JSON object per location key in an
// S3-compatible bucket.
type S3LocationCache struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3LocationCache creates a MinIO client for cfg.
func NewS3LocationCache(cfg S3Config) (*S3LocationCache, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("repository: s3 endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create MinIO client: %w", err)
	}

	return &S3LocationCache{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *S3LocationCache) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("repository: failed to check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("repository: failed to create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Get returns the stored envelope for key.
func (s *S3LocationCache) Get(ctx context.Context, key string) (string, bool, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectKey(s.prefix, key), minio.GetObjectOptions{})
	if err != nil {
		return "", false, fmt.Errorf("repository: failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return "", false, nil
		}
		return "", false, fmt.Errorf("repository: failed to read object: %w", err)
	}
	return string(data), true, nil
}

// Put stores value under key. Existing objects are left untouched.
func (s *S3LocationCache) Put(ctx context.Context, key, value string) error {
	name := objectKey(s.prefix, key)

	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code != noSuchKey {
		return fmt.Errorf("repository: failed to check for existing object: %w", err)
	}

	data := []byte(value)
	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "application/json",
			UserMetadata: map[string]string{"Geo-Location": key},
		})
	if err != nil {
		return fmt.Errorf("repository: failed to store object: %w", err)
	}

	log.Debug().Str("key", key).Str("object", name).Msg("Stored location cache object")
	return nil
}

// objectKey hashes the location key; DMS strings contain characters that
// are awkward in object names.
func objectKey(prefix, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%slocations/%s.json", prefix, hex.EncodeToString(sum[:]))
}
