// Package s3 implements store.Backend with one object per key in an
// S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alfredjeanlab/synapse/internal/store"
)

// objectAPI is the subset of *s3.Client the backend uses.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Backend stores key k at object <prefix>/<k>.json.
//
// Set is not atomic: keys are written one PutObject at a time in sorted order,
// and a failure stops at that key, leaving the earlier objects updated and the
// rest at their previous contents. Readers of a snapshot must tolerate such a
// mix; graph.Open repairs a missing or dangling current session, and
// GraphData filters edges whose endpoints are absent.
type Backend struct {
	client objectAPI
	bucket string
	prefix string
}

// Compile-time check that Backend implements store.Backend.
var _ store.Backend = (*Backend)(nil)

// New creates an S3 backend. If endpoint is non-empty, path-style addressing
// is enabled (for MinIO and similar).
func New(ctx context.Context, bucket, prefix, region, endpoint string) (*Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &Backend{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (b *Backend) objectKey(key string) string {
	return path.Join(b.prefix, key+".json")
}

// Get fetches each key's object. Missing objects are omitted.
func (b *Backend) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(k)),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				continue
			}
			return nil, fmt.Errorf("s3 get object %s: %w", k, err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read object %s: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}

// Set uploads each value. Objects are written in sorted key order; a failure
// part-way leaves earlier keys updated.
func (b *Backend) Set(ctx context.Context, values map[string][]byte) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	contentType := "application/json"
	for _, k := range keys {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(b.objectKey(k)),
			Body:        bytes.NewReader(values[k]),
			ContentType: &contentType,
		})
		if err != nil {
			return fmt.Errorf("s3 put object %s: %w", k, err)
		}
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need release.
func (b *Backend) Close() error {
	return nil
}
