// Package s3 implements the Amazon S3 repository adapter on aws-sdk-go-v2.
// S3 accepts any key RACS does, so quoting is the identity; the only name
// transform is the configured bucket prefix.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/racs-io/racs/internal/repository"
	racserr "github.com/racs-io/racs/pkg/errors"
)

// Class is the adapter class name used in config files.
const Class = "S3Repository"

// Options configures an S3 repository.
type Options struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	BucketPrefix    string `yaml:"bucket_prefix"`
	MaxRetries      int    `yaml:"max_retries"`
}

// S3 talks to one S3-compatible endpoint.
type S3 struct {
	name   string
	client *awss3.Client
	prefix string
}

// New creates the adapter and its SDK client.
func New(ctx context.Context, name string, opts Options) (*S3, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithRetryMaxAttempts(opts.MaxRetries),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return &S3{name: name, client: client, prefix: opts.BucketPrefix}, nil
}

// Name returns the configured repository name.
func (s *S3) Name() string { return s.name }

// Class returns the config class name.
func (s *S3) Class() string { return Class }

// Serialized reports false: the SDK client is goroutine-safe.
func (s *S3) Serialized() bool { return false }

func (s *S3) bucketName(bucket string) string { return s.prefix + bucket }

// CreateBucket creates the prefixed bucket; owning it already succeeds.
func (s *S3) CreateBucket(ctx context.Context, bucket string) error {
	_, err := s.client.CreateBucket(ctx, &awss3.CreateBucketInput{
		Bucket: aws.String(s.bucketName(bucket)),
	})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		var exists *s3types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return s.translate(err, bucket, "")
	}
	return nil
}

// DeleteBucket removes the prefixed bucket.
func (s *S3) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := s.client.DeleteBucket(ctx, &awss3.DeleteBucketInput{
		Bucket: aws.String(s.bucketName(bucket)),
	})
	if err != nil {
		return s.translate(err, bucket, "")
	}
	return nil
}

// PutObject uploads one share with its user metadata.
func (s *S3) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string, userMeta map[string]string) error {
	input := &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucketName(bucket)),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      userMeta,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return s.translate(err, bucket, key)
	}
	return nil
}

// GetObject downloads one share.
func (s *S3) GetObject(ctx context.Context, bucket, key string) (*repository.Object, error) {
	result, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucketName(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.translate(err, bucket, key)
	}
	defer result.Body.Close()
	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, racserr.Transient(s.name, fmt.Errorf("read object body: %w", err))
	}
	return &repository.Object{
		Data:        data,
		ContentType: aws.ToString(result.ContentType),
		UserMeta:    lowerKeys(result.Metadata),
	}, nil
}

// Head returns response-shaped headers for one share.
func (s *S3) Head(ctx context.Context, bucket, key string) (map[string]string, error) {
	result, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucketName(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.translate(err, bucket, key)
	}
	headers := map[string]string{
		"Content-Type":   aws.ToString(result.ContentType),
		"Content-Length": strconv.FormatInt(aws.ToInt64(result.ContentLength), 10),
		"Etag":           aws.ToString(result.ETag),
		"Last-Modified":  aws.ToTime(result.LastModified).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
	}
	for k, v := range lowerKeys(result.Metadata) {
		headers[k] = v
	}
	return headers, nil
}

// DeleteObject removes one share; S3 deletes are idempotent already.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.translate(err, bucket, key)
	}
	return nil
}

// ListBucket pages ListObjectsV2 until done or MaxKeys reached.
func (s *S3) ListBucket(ctx context.Context, bucket string, opts repository.ListOptions) (*repository.Listing, error) {
	listing := &repository.Listing{}
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName(bucket)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.Marker != "" {
		input.StartAfter = aws.String(opts.Marker)
	}
	if opts.MaxKeys > 0 {
		input.MaxKeys = aws.Int32(int32(opts.MaxKeys))
	}

	paginator := awss3.NewListObjectsV2Paginator(s.client, input)
	seenPrefixes := make(map[string]struct{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.translate(err, bucket, "")
		}
		for _, obj := range page.Contents {
			listing.Entries = append(listing.Entries, repository.Entry{
				Key:          aws.ToString(obj.Key),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
				Size:         aws.ToInt64(obj.Size),
			})
		}
		for _, cp := range page.CommonPrefixes {
			p := aws.ToString(cp.Prefix)
			if _, ok := seenPrefixes[p]; !ok {
				seenPrefixes[p] = struct{}{}
				listing.CommonPrefixes = append(listing.CommonPrefixes, p)
			}
		}
		if opts.MaxKeys > 0 && len(listing.Entries) >= opts.MaxKeys {
			listing.Entries = listing.Entries[:opts.MaxKeys]
			listing.IsTruncated = paginator.HasMorePages()
			break
		}
	}
	return listing, nil
}

// ListBuckets returns logical names: only buckets carrying the configured
// prefix, with the prefix removed.
func (s *S3) ListBuckets(ctx context.Context) ([]string, error) {
	result, err := s.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
	if err != nil {
		return nil, s.translate(err, "", "")
	}
	var names []string
	for _, b := range result.Buckets {
		name := aws.ToString(b.Name)
		if strings.HasPrefix(name, s.prefix) {
			names = append(names, strings.TrimPrefix(name, s.prefix))
		}
	}
	return names, nil
}

// translate maps SDK errors into the closed kind set.
func (s *S3) translate(err error, bucket, key string) error {
	var noKey *s3types.NoSuchKey
	var noBucket *s3types.NoSuchBucket
	var notFound *s3types.NotFound
	switch {
	case errors.As(err, &noKey):
		return racserr.NotFound(bucket, key).WithCause(err)
	case errors.As(err, &noBucket):
		return racserr.NoSuchBucket(bucket).WithCause(err)
	case errors.As(err, &notFound):
		// HeadObject reports a bare 404 for both scopes; a missing key is
		// the overwhelmingly common case.
		if key != "" {
			return racserr.NotFound(bucket, key).WithCause(err)
		}
		return racserr.NoSuchBucket(bucket).WithCause(err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return racserr.NoSuchBucket(bucket).WithCause(err)
		case "NoSuchKey":
			return racserr.NotFound(bucket, key).WithCause(err)
		case "BucketNotEmpty":
			return racserr.BucketNotEmpty(bucket).WithCause(err)
		}
	}
	return racserr.Transient(s.name, err)
}

func lowerKeys(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[strings.ToLower(k)] = v
	}
	return out
}

var _ repository.Repository = (*S3)(nil)
