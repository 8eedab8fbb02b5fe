package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// ObjectPutter is the part of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configure the archive bucket. An empty Endpoint uses AWS.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Sink writes one JSON object per entry. Keys are unique per entry id and
// objects are never overwritten by the server, which keeps the archive
// append-only.
type S3Sink struct {
	client ObjectPutter
	bucket string
	prefix string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds an S3 client for opts, using path-style addressing when
// a custom endpoint (e.g. MinIO) is set.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Sink(client ObjectPutter, bucket, prefix string) *S3Sink {
	if prefix == "" {
		prefix = "audit"
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

type archivedEntry struct {
	ID         string         `json:"id"`
	Type       string         `json:"event_type"`
	SessionID  string         `json:"session_id,omitempty"`
	ElectionID string         `json:"election_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// Key is the object key for e: <prefix>/<yyyy>/<mm>/<dd>/<event_type>/<id>.json
func (s *S3Sink) Key(e *models.AuditEntry) string {
	t := e.CreatedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s/%s.json", s.prefix, t.Year(), t.Month(), t.Day(), e.Type, e.ID)
}

func (s *S3Sink) Write(ctx context.Context, e *models.AuditEntry) error {
	body, err := json.Marshal(archivedEntry{
		ID:         e.ID,
		Type:       string(e.Type),
		SessionID:  e.SessionID,
		ElectionID: e.ElectionID,
		Detail:     e.Detail,
		CreatedAt:  e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(e)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return fmt.Errorf("archive audit entry %s: %w", e.ID, err)
	}
	return nil
}
