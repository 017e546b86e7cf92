package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/flicket/backend/libs/config"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MaxImageSize caps fetched and uploaded thumbnails
const MaxImageSize = 4 << 20

var (
	errStorageDisabled = errors.New("thumbnail storage is not configured; set S3_* to enable uploads")
	// ErrUnsupportedType is returned when an uploaded file is not an image
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned when a file exceeds MaxImageSize
	ErrTooLarge = errors.New("file too large")
)

// UploadedFile is a stored object
type UploadedFile struct {
	Key string
	URL string
}

// objectAPI is the subset of the S3 client used by S3Storage
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores thumbnails in S3-compatible object storage
type S3Storage struct {
	bucket        string
	publicBaseURL string
	client        objectAPI
	fetcher       *resty.Client
	logger        *zap.Logger
	disabled      bool
}

// NewS3Storage creates the storage. Missing bucket or credentials leave it disabled.
func NewS3Storage(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Storage, error) {
	storage := &S3Storage{
		bucket:        strings.TrimSpace(cfg.Bucket),
		publicBaseURL: cfg.PublicBaseURL,
		fetcher:       resty.New().SetTimeout(30 * time.Second),
		logger:        logger,
	}

	accessKey := strings.TrimSpace(cfg.AccessKeyID)
	secretKey := strings.TrimSpace(cfg.SecretAccessKey)
	if storage.bucket == "" || accessKey == "" || secretKey == "" {
		logger.Warn("S3_BUCKET or credentials are not set; thumbnail uploads are disabled")
		storage.disabled = true
		return storage, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				PartitionID:   "aws",
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	storage.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	if storage.publicBaseURL == "" {
		storage.publicBaseURL = defaultPublicBaseURL(cfg)
	}

	return storage, nil
}

func defaultPublicBaseURL(cfg config.S3Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

func (s *S3Storage) ensureEnabled() error {
	if s.disabled {
		return errStorageDisabled
	}
	return nil
}

// DeleteFiles removes the given objects. Every key is attempted; the joined error is returned.
func (s *S3Storage) DeleteFiles(ctx context.Context, keys ...string) error {
	if err := s.ensureEnabled(); err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// UploadFromURL copies a remote image into the bucket.
// A source that answers with an error status or an empty body yields (nil, nil).
func (s *S3Storage) UploadFromURL(ctx context.Context, url string) (*UploadedFile, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}

	resp, err := s.fetcher.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() || len(resp.Body()) == 0 {
		s.logger.Warn("source returned no data",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, nil
	}

	return s.Upload(ctx, bytes.NewReader(resp.Body()))
}

// Upload stores an image read from r under a generated key
func (s *S3Storage) Upload(ctx context.Context, r io.Reader) (*UploadedFile, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	key := GenerateFileName(mtype.Extension())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mtype.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	return &UploadedFile{
		Key: key,
		URL: PublicURL(s.publicBaseURL, key),
	}, nil
}
