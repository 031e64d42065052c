package receiptcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client defines the S3 operations used by S3Store.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config contains configuration for the S3 backend.
type S3Config struct {
	Bucket         string
	Region         string
	Prefix         string // Key prefix acting as the cache directory
	AccessKeyID    string
	SecretKey      string
	Endpoint       string // Optional: for S3-compatible services
	ForcePathStyle bool   // For S3-compatible services like MinIO
}

// S3Option configures S3Store.
type S3Option func(*s3Options)

type s3Options struct {
	httpClient      *http.Client
	s3Client        S3Client
	s3ConfigOptions []func(*config.LoadOptions) error
	now             func() time.Time
	newName         func() string
}

// WithS3Client sets a pre-configured S3 client. Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) {
		o.s3Client = client
	}
}

// WithS3HTTPClient sets a custom HTTP client for S3 requests.
func WithS3HTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) {
		o.httpClient = client
	}
}

// WithS3ConfigOption adds a custom AWS config option.
func WithS3ConfigOption(option func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) {
		o.s3ConfigOptions = append(o.s3ConfigOptions, option)
	}
}

// WithS3Clock overrides the clock used for the metadata returned by Write.
func WithS3Clock(now func() time.Time) S3Option {
	return func(o *s3Options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithS3NameGenerator overrides the entry name generator.
func WithS3NameGenerator(fn func() string) S3Option {
	return func(o *s3Options) {
		if fn != nil {
			o.newName = fn
		}
	}
}

// S3Store keeps receipts under a key prefix of an S3 bucket.
// PUT is atomic and DELETE of a missing key succeeds, which gives the same cross-invocation
// guarantees as LocalStore. It is safe for concurrent use.
type S3Store struct {
	client  S3Client
	bucket  string
	prefix  string
	now     func() time.Time
	newName func() string
}

// NewS3Store creates an S3-backed store.
func NewS3Store(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("%w: bucket and region are required", ErrInvalidConfig)
	}

	options := &s3Options{
		now:     time.Now,
		newName: newEntryName,
	}
	for _, opt := range opts {
		opt(options)
	}

	client := options.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if options.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
		}
		awsOptions = append(awsOptions, options.s3ConfigOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if strings.Contains(prefix, "..") {
		return nil, fmt.Errorf("%w: prefix %q", ErrInvalidConfig, cfg.Prefix)
	}
	if prefix != "" {
		prefix += "/"
	}

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		now:     options.now,
		newName: options.newName,
	}, nil
}

// Write uploads data under a fresh key.
func (s *S3Store) Write(ctx context.Context, data []byte) (CachedFile, error) {
	name := s.newName()
	if err := validName(name); err != nil {
		return CachedFile{}, err
	}
	key := s.prefix + name

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return CachedFile{}, errors.Join(ErrWriteFailed, classifyS3Error(err, "put receipt"))
	}

	return CachedFile{
		Name:    name,
		Path:    key,
		Size:    int64(len(data)),
		ModTime: s.now(),
	}, nil
}

// Read downloads the entry, or returns ErrNotFound if it vanished.
func (s *S3Store) Read(ctx context.Context, file CachedFile) ([]byte, error) {
	if err := validName(file.Name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + file.Name),
	})
	if err != nil {
		classified := classifyS3Error(err, "get receipt")
		if errors.Is(classified, ErrNotFound) {
			return nil, classified
		}
		return nil, errors.Join(ErrReadFailed, classified)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return data, nil
}

// List returns entries directly under the prefix, oldest first, following continuation tokens.
func (s *S3Store) List(ctx context.Context) ([]CachedFile, error) {
	var (
		files []CachedFile
		token *string
	)

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Join(ErrListFailed, classifyS3Error(err, "list receipts"))
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, s.prefix)
			if validName(name) != nil {
				continue
			}
			files = append(files, CachedFile{
				Name:    name,
				Path:    key,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	sortOldestFirst(files)
	return files, nil
}

// Remove deletes the entry. A missing entry is not an error.
func (s *S3Store) Remove(ctx context.Context, file CachedFile) error {
	if err := validName(file.Name); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + file.Name),
	})
	if err != nil {
		classified := classifyS3Error(err, "delete receipt")
		if errors.Is(classified, ErrNotFound) {
			return nil
		}
		return errors.Join(ErrRemoveFailed, classified)
	}
	return nil
}

// classifyS3Error converts S3 errors to cache errors.
func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s operation", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s operation", ErrOperationCanceled, operation)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, err)
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "AccessDenied":
			return fmt.Errorf("%w: %s operation", ErrAccessDenied, operation)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %s operation", ErrServiceUnavailable, operation)
		default:
			return fmt.Errorf("%s operation failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s operation failed: %w", operation, err)
}

var _ Store = (*S3Store)(nil)
