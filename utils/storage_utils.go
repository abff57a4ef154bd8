package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config describes an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the base URL objects are served from. Defaults to https://<bucket>.<endpoint host>.
	PublicURL string
}

// Uploader puts media objects into the configured bucket.
type Uploader struct {
	client    s3iface.S3API
	bucket    string
	publicURL string
}

func NewUploader(cfg S3Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return NewUploaderWithClient(s3.New(sess), cfg), nil
}

// NewUploaderWithClient allows injecting a test client.
func NewUploaderWithClient(client s3iface.S3API, cfg S3Config) *Uploader {
	return &Uploader{client: client, bucket: cfg.Bucket, publicURL: publicBase(cfg)}
}

func publicBase(cfg S3Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if host == "" {
		host = "s3." + cfg.Region + ".amazonaws.com"
	}
	return fmt.Sprintf("https://%s.%s", cfg.Bucket, strings.TrimRight(host, "/"))
}

// Upload stores data under key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload file to S3: %w", err)
	}
	return u.publicURL + "/" + key, nil
}
