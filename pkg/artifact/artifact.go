// Package artifact opens model artifacts stored on local disk or in S3.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// ErrNotFound is returned when the artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Opener resolves artifact locations.
type Opener struct {
	// S3 is used for s3:// locations. Nil creates a client from the default
	// credential chain on first use.
	S3     s3iface.S3API
	Region string
}

// Open returns a reader for location, either a file path or s3://bucket/key.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, errors.New("artifact: empty location")
	}
	if strings.HasPrefix(location, "s3://") {
		return o.openS3(ctx, location)
	}

	f, err := os.Open(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact: %w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("artifact: %w", err)
	}
	return f, nil
}

func (o *Opener) openS3(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(location)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}

	if o.S3 == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(o.Region)})
		if err != nil {
			return nil, fmt.Errorf("artifact: aws session: %w", err)
		}
		o.S3 = s3.New(sess)
	}

	out, err := o.S3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == s3.ErrCodeNoSuchBucket) {
			return nil, fmt.Errorf("artifact: %w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("artifact: get %s: %w", location, err)
	}
	return out.Body, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url %q: %w", location, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/key", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: missing key", location)
	}
	return u.Host, key, nil
}
