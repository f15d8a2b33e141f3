package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/rendeza/rendeza/internal/pkg/config"
)

// Delivery is one webhook request as it reached the service.
type Delivery struct {
	ReceivedAt  time.Time `json:"received_at"`
	Outcome     string    `json:"outcome"`
	OrderID     string    `json:"order_id,omitempty"`
	ContentType string    `json:"content_type"`
	RemoteIP    string    `json:"remote_ip"`
	Body        string    `json:"body"`
}

// Archiver stores webhook deliveries for later audit.
type Archiver interface {
	Archive(ctx context.Context, d Delivery) error
}

// Client wraps the S3 client with archive-specific functionality
type Client struct {
	s3Client *s3.Client
	bucket   string
	prefix   string
}

// NewClient creates a new S3 archive client
func NewClient(ctx context.Context, cfg config.ArchiveConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("webhook archive is disabled")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible stores (MinIO, B2) expect path-style URLs
			o.UsePathStyle = true
		}
	})

	log.Infof("[S3Archive] Archiving webhook deliveries to bucket: %s", cfg.Bucket)
	return &Client{s3Client: s3Client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Archive writes d as a JSON object.
func (c *Client) Archive(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}

	key := ObjectKey(c.prefix, d)
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive webhook to s3://%s/%s: %w", c.bucket, key, err)
	}
	log.Debugf("[S3Archive] Stored webhook delivery s3://%s/%s", c.bucket, key)
	return nil
}

// ObjectKey generates the object key of a delivery.
// Format: <prefix>/YYYY/MM/DD/<outcome>/<order id>-<uuid>.json
func ObjectKey(prefix string, d Delivery) string {
	orderID := sanitizeKeyPart(d.OrderID)
	if orderID == "" {
		orderID = "unknown"
	}
	outcome := sanitizeKeyPart(d.Outcome)
	if outcome == "" {
		outcome = "unknown"
	}

	t := d.ReceivedAt.UTC()
	key := fmt.Sprintf("%04d/%02d/%02d/%s/%s-%s.json", t.Year(), t.Month(), t.Day(), outcome, orderID, uuid.NewString())
	if p := strings.Trim(prefix, "/"); p != "" {
		key = p + "/" + key
	}
	return key
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return -1
		}
	}, s)
}
