// internal/adapters/storage/s3.go
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const (
	// deleteBatchSize is the DeleteObjects per-request limit
	deleteBatchSize = 1000
	uploadWorkers   = 8
)

// S3API is the subset of *s3.Client the cache needs
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Config holds S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // For MinIO/LocalStack
	UsePathStyle    bool   // For MinIO/LocalStack
}

// NewS3Client builds an S3 client from cfg
func NewS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

func buildAWSConfig(ctx context.Context, cfg *S3Config) (aws.Config, error) {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretAccessKey,
					"",
				),
			),
		)
	}
	return config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
}

// S3CacheStorage shares gateway buckets between replicas. A gateway bucket
// is the key prefix <prefix>/<bucket>/ and each entry is the JSON-encoded
// response stored under the SHA-256 of its URL.
type S3CacheStorage struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

var _ ports.CacheStorage = (*S3CacheStorage)(nil)

func NewS3CacheStorage(client S3API, cfg *S3Config, logger *slog.Logger) *S3CacheStorage {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3CacheStorage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   prefix,
		logger:   logger.With(slog.String("storage", "s3"), slog.String("bucket", cfg.Bucket)),
	}
}

func (s *S3CacheStorage) bucketPrefix(bucket string) string {
	return s.prefix + bucket + "/"
}

func (s *S3CacheStorage) objectKey(bucket, url string) string {
	sum := sha256.Sum256([]byte(url))
	return s.bucketPrefix(bucket) + hex.EncodeToString(sum[:])
}

// Keys lists gateway buckets as the common prefixes below the root prefix
func (s *S3CacheStorage) Keys(ctx context.Context) ([]string, error) {
	names := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list buckets: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), s.prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

func (s *S3CacheStorage) listObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3CacheStorage) deleteObjects(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("failed to delete %d objects, first %s: %s",
				len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

func (s *S3CacheStorage) Delete(ctx context.Context, bucket string) (bool, error) {
	keys, err := s.listObjects(ctx, s.bucketPrefix(bucket))
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}

	if err := s.deleteObjects(ctx, keys); err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "cache bucket deleted",
		slog.String("cache_bucket", bucket),
		slog.Int("entries", len(keys)))
	return true, nil
}

func (s *S3CacheStorage) upload(ctx context.Context, key string, resp *domain.CachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", resp.URL, err)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"source-url": resp.URL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", resp.URL, err)
	}
	return nil
}

func (s *S3CacheStorage) Put(ctx context.Context, bucket, url string, resp *domain.CachedResponse) error {
	cp := *resp
	cp.URL = url
	return s.upload(ctx, s.objectKey(bucket, url), &cp)
}

// PutAll uploads concurrently; on failure it deletes what it wrote. An
// entry that existed before the call is lost in that case.
func (s *S3CacheStorage) PutAll(ctx context.Context, bucket string, entries []*domain.CachedResponse) error {
	if len(entries) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		written []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadWorkers)
	for _, e := range entries {
		key := s.objectKey(bucket, e.URL)
		g.Go(func() error {
			if err := s.upload(gctx, key, e); err != nil {
				return err
			}
			mu.Lock()
			written = append(written, key)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if len(written) > 0 {
			if cleanupErr := s.deleteObjects(context.WithoutCancel(ctx), written); cleanupErr != nil {
				s.logger.ErrorContext(ctx, "failed to undo partial write",
					slog.String("cache_bucket", bucket),
					slog.String("error", cleanupErr.Error()))
			}
		}
		return err
	}

	s.logger.DebugContext(ctx, "responses stored",
		slog.String("cache_bucket", bucket),
		slog.Int("count", len(entries)))
	return nil
}

func (s *S3CacheStorage) Match(ctx context.Context, bucket, url string) (*domain.CachedResponse, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(bucket, url)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get %s: %w", url, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	var resp domain.CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", url, err)
	}
	return &resp, nil
}

func (s *S3CacheStorage) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 head bucket error: %w", err)
	}
	return nil
}
