package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type s3Storage struct {
	client *s3.Client
	config S3Config
}

type S3Config struct {
	Bucket string
	// Prefix is prepended to every key that is not already an s3:// URL.
	Prefix string
}

func NewS3Storage(ctx context.Context, s S3Config) (Storage, error) {
	if s.Bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}

	var optsFunc []func(*config.LoadOptions) error

	s3EndpointUrl, ok := os.LookupEnv("S3_ENDPOINT_URL")
	if ok {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               s3EndpointUrl,
				HostnameImmutable: true,
			}, nil
		})
		optsFunc = append(optsFunc, config.WithEndpointResolverWithOptions(resolver))
	}

	c, err := config.LoadDefaultConfig(ctx, optsFunc...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	s3Client := s3.NewFromConfig(c, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &s3Storage{
		client: s3Client,
		config: s,
	}, nil
}

// key accepts either a bare key or an s3://bucket/key URL of the configured bucket.
func (s *s3Storage) key(location string) string {
	bucketPrefix := fmt.Sprintf("s3://%s/", s.config.Bucket)
	if strings.HasPrefix(location, bucketPrefix) {
		return strings.TrimPrefix(location, bucketPrefix)
	}
	return s.config.Prefix + strings.TrimPrefix(location, "/")
}

func (s *s3Storage) Validate(location string) error {
	if strings.HasPrefix(location, "s3://") && !strings.HasPrefix(location, fmt.Sprintf("s3://%s/", s.config.Bucket)) {
		return fmt.Errorf("%w: %s is not in bucket %s", ErrInvalidLocation, location, s.config.Bucket)
	}
	if strings.TrimPrefix(s.key(location), s.config.Prefix) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidLocation)
	}
	return nil
}

func (s *s3Storage) Put(ctx context.Context, location string, data []byte) (string, error) {
	key := s.key(location)
	contentType := http.DetectContentType(data)

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.config.Bucket, key), nil
}

func (s *s3Storage) Get(ctx context.Context, location string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(location)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("failed to download from S3: %w", errors.Join(ErrNotExist, err))
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	var buffer bytes.Buffer
	_, err = buffer.ReadFrom(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}

	return buffer.Bytes(), nil
}

func (s *s3Storage) Exists(ctx context.Context, location string) (bool, error) {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(location)),
	}); err != nil {
		// HeadObject has no body, so a missing key surfaces as a bare 404 API error.
		var notFound *types.NotFound
		var apiErr smithy.APIError
		if errors.As(err, &notFound) || (errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound") {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat S3 object: %w", err)
	}

	return true, nil
}
