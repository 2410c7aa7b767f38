// Package s3 stores referenced audio in Amazon S3 or an S3-compatible service.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"voicenote/internal/blob"
)

// Scheme is the URI scheme handled by Store.
const Scheme = "s3"

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Config holds S3 connection settings.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint, e.g. MinIO
	AccessKey string
	SecretKey string
}

// Store implements blob.Store and blob.Presigner on top of S3.
type Store struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
}

var (
	_ blob.Store     = (*Store)(nil)
	_ blob.Presigner = (*Store)(nil)
)

// New creates an S3 store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := awss3.NewFromConfig(awsCfg, s3Opts...)
	slog.InfoContext(ctx, "Initialized S3 blob store", "bucket", cfg.Bucket, "region", cfg.Region, "custom_endpoint", cfg.Endpoint != "")

	return &Store{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// Handles reports whether uri uses the s3 scheme.
func (s *Store) Handles(uri string) bool {
	loc, err := blob.ParseURI(uri)
	return err == nil && loc.Scheme == Scheme
}

// Open returns the object body for an s3:// URI.
func (s *Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := s.locate(uri)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, uri)
		}
		return nil, fmt.Errorf("s3: get object %s: %w", uri, err)
	}
	return out.Body, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, uri string) error {
	loc, err := s.locate(uri)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete object %s: %w", uri, err)
	}
	return nil
}

// PresignPut issues a presigned PUT URL for key in the configured bucket.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (blob.Upload, error) {
	req, err := s.presign.PresignPutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return blob.Upload{}, fmt.Errorf("s3: presign put %s: %w", key, err)
	}
	return blob.Upload{
		URL:       req.URL,
		URI:       blob.Location{Scheme: Scheme, Bucket: s.bucket, Key: key}.String(),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (s *Store) locate(uri string) (blob.Location, error) {
	loc, err := blob.ParseURI(uri)
	if err != nil {
		return blob.Location{}, err
	}
	if loc.Scheme != Scheme {
		return blob.Location{}, fmt.Errorf("%w: %s", blob.ErrUnsupportedURI, uri)
	}
	return loc, nil
}
