// Package storage archives rendered ticket PDFs in an S3-compatible bucket
// and hands out presigned links to them.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PresignExpiry time.Duration
}

type TicketArchive struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	presignExpiry time.Duration
}

func New(ctx context.Context, cfg Config) (*TicketArchive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage: access key and secret key are required")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &TicketArchive{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		presignExpiry: expiry,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *TicketArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage: head bucket: %w", err)
	}

	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("storage: create bucket: %w", err)
	}

	return nil
}

var keyNamespace = uuid.MustParse("6f1c7a52-3a0e-4c43-9d0b-5b8f5e3a1c2d")

// Key maps a ticket reference to its object key. Keys are name-based UUIDs so
// a bucket listing does not expose references.
func Key(reference string) string {
	return "tickets/" + uuid.NewSHA1(keyNamespace, []byte(reference)).String() + ".pdf"
}

func (a *TicketArchive) Put(ctx context.Context, reference string, pdf []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(Key(reference)),
		Body:          bytes.NewReader(pdf),
		ContentType:   aws.String("application/pdf"),
		ContentLength: aws.Int64(int64(len(pdf))),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", reference, err)
	}
	return nil
}

func (a *TicketArchive) Exists(ctx context.Context, reference string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(Key(reference)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("storage: head %s: %w", reference, err)
	}
	return true, nil
}

// Delete removes the archived ticket. Deleting a missing object is not an
// error.
func (a *TicketArchive) Delete(ctx context.Context, reference string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(Key(reference)),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", reference, err)
	}
	return nil
}

// URL returns a presigned GET link for the archived ticket.
func (a *TicketArchive) URL(ctx context.Context, reference string) (string, error) {
	req, err := a.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(a.bucket),
		Key:                        aws.String(Key(reference)),
		ResponseContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", reference+".pdf")),
	}, s3.WithPresignExpires(a.presignExpiry))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", reference, err)
	}
	return req.URL, nil
}
