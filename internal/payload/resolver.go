// Package payload resolves a token or allow-listed key to its opaque payload
// value via an external keyed-record collection held in object storage.
package payload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/enginex/gate/domain"
	"github.com/enginex/gate/log"
)

// ErrNotFound covers every failure mode of a lookup: the fetch failed, the
// collection did not parse, or no record matched. The object store does not
// let callers tell these apart, so neither does this resolver. The real cause
// is logged server-side.
var ErrNotFound = errors.New("payload not found")

// ObjectGetter is the slice of the S3 API the resolver needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Resolver looks identifiers up in a single JSON collection of
// {token, base64} records. Every call re-fetches the full collection and
// scans it linearly; there is deliberately no cache here.
type Resolver struct {
	client  ObjectGetter
	bucket  string
	fileKey string
	timeout time.Duration
	logger  log.Logger
}

// NewS3Client builds an S3 client. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(cfg, s3opts...), nil
}

// NewResolver creates a resolver reading the collection at bucket/fileKey.
func NewResolver(client ObjectGetter, bucket, fileKey string, timeout time.Duration, logger log.Logger) *Resolver {
	return &Resolver{
		client:  client,
		bucket:  bucket,
		fileKey: fileKey,
		timeout: timeout,
		logger:  logger,
	}
}

// Resolve fetches the collection and returns the payload value of the record
// whose token equals identifier, or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.fileKey),
	})
	if err != nil {
		r.logger.Error(ctx, "payload collection fetch failed", err, map[string]interface{}{
			"bucket": r.bucket,
			"key":    r.fileKey,
		})
		return "", ErrNotFound
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		r.logger.Error(ctx, "payload collection read failed", err, nil)
		return "", ErrNotFound
	}

	var records []domain.PayloadRecord
	if err := json.Unmarshal(body, &records); err != nil {
		r.logger.Error(ctx, "payload collection parse failed", err, nil)
		return "", ErrNotFound
	}

	for _, record := range records {
		if record.Token == identifier {
			return record.Base64, nil
		}
	}

	return "", ErrNotFound
}
