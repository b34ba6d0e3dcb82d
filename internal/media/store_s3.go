package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config points the store at a bucket. Endpoint and path-style
// addressing are for S3-compatible servers such as MinIO.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PublicBaseURL string
}

// S3Store keeps objects in an S3 bucket keyed by public id.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media bucket is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Upload stores data under publicID. With overwrite false an existing
// object is kept and its current version returned. invalidate marks the
// object uncacheable so CDNs revalidate it.
func (s *S3Store) Upload(ctx context.Context, data []byte, publicID string, overwrite, invalidate bool) (*UploadResult, error) {
	if publicID == "" {
		return nil, errors.New("public id is required")
	}
	if !overwrite {
		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(publicID),
		})
		if err == nil {
			return s.result(publicID, head.VersionId, head.ETag)
		}
		var notFound *types.NotFound
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("check existing object: %w", err)
		}
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(publicID),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	}
	if invalidate {
		input.CacheControl = aws.String("no-cache")
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	return s.result(publicID, out.VersionId, out.ETag)
}

// result prefers the bucket's object version and falls back to the ETag
// on unversioned buckets.
func (s *S3Store) result(publicID string, versionID, etag *string) (*UploadResult, error) {
	version := aws.ToString(versionID)
	if version == "" {
		version = strings.Trim(aws.ToString(etag), `"`)
	}
	if version == "" {
		return nil, errors.New("storage returned no object version")
	}
	return &UploadResult{
		Reference: publicID,
		Version:   version,
		URL:       objectURL(s.baseURL, version, publicID),
	}, nil
}
