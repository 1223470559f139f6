package s3client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultRegion = "us-east-1"

// SourceURL is a parsed s3://bucket/key source argument.
type SourceURL struct {
	Bucket string
	Key    string
}

func (u SourceURL) String() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// ParseSourceURL reports ok=false when arg is not an s3:// URL.
func ParseSourceURL(arg string) (u SourceURL, ok bool, err error) {
	rest, found := strings.CutPrefix(arg, "s3://")
	if !found {
		return SourceURL{}, false, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return SourceURL{}, true, fmt.Errorf("invalid s3 source %q: want s3://bucket/key", arg)
	}
	return SourceURL{Bucket: bucket, Key: key}, true, nil
}

// NewSourceClient builds a path-style client. The endpoint must carry its
// scheme, e.g. http://127.0.0.1:9000.
func NewSourceClient(ctx context.Context, endpoint, accessKey, secretKey, region string) (*s3.Client, error) {
	if region == "" {
		region = DefaultRegion
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// ObjectGetter is the part of *s3.Client used to stream a source object.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// OpenSource streams the object body so it can be chunked without a local
// copy. The caller closes the returned reader.
func OpenSource(ctx context.Context, client ObjectGetter, u SourceURL) (io.ReadCloser, int64, error) {
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get object %s: %w", u, err)
	}
	logger.Debugf("opened %s, content length %d", u, aws.ToInt64(resp.ContentLength))
	return resp.Body, aws.ToInt64(resp.ContentLength), nil
}
