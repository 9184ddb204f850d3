package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
)

const s3BodyKey = "middleware.s3-body"

// ObjectGetter is the part of *s3.Client used to fetch content
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Content serves objects from bucket for GET and HEAD requests under prefix.
// The request path below prefix is appended to keyPrefix to form the object key.
// Missing objects fall through to the resolved route.
func S3Content(client ObjectGetter, bucket, keyPrefix, prefix string) pipeline.BeforeFunc {
	prefix = "/" + strings.Trim(prefix, "/")

	return func(ctx context.Context, c *http.Context) (*http.Response, error) {
		if c.Method() != "GET" && c.Method() != "HEAD" {
			return nil, nil
		}
		rel, ok := underPrefix(c.Path(), prefix)
		if !ok || rel == "" {
			return nil, nil
		}

		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(keyPrefix + rel),
		})
		if err != nil {
			var missing *types.NoSuchKey
			if errors.As(err, &missing) {
				return nil, nil
			}
			return nil, fmt.Errorf("s3 get %s: %w", keyPrefix+rel, err)
		}

		// The context closes the body if the response is never written
		c.Set(s3BodyKey, out.Body)

		contentType := aws.ToString(out.ContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		resp := http.NewStream(func() (io.ReadCloser, error) {
			return out.Body, nil
		}, contentType)
		if etag := aws.ToString(out.ETag); etag != "" {
			resp.WithHeader("ETag", etag)
		}
		if out.LastModified != nil {
			resp.WithHeader("Last-Modified", out.LastModified.UTC().Format(stdhttp.TimeFormat))
		}
		return resp, nil
	}
}

// InstallS3Content registers the S3 content hook
func InstallS3Content(set *pipeline.Set, client ObjectGetter, bucket, keyPrefix, prefix string) {
	set.Before.AddToEnd(pipeline.Item[pipeline.BeforeFunc]{
		Name:     NameS3Content,
		Delegate: S3Content(client, bucket, keyPrefix, prefix),
	}, true)
}

// NewS3Client creates a client for region. A non-empty endpoint selects an
// S3-compatible store with path-style addressing. Credentials come from
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY; without them requests are anonymous.
func NewS3Client(region, endpoint string) *s3.Client {
	opts := s3.Options{
		Region:      region,
		Credentials: envCredentials(),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials() aws.CredentialsProvider {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}
	token := os.Getenv("AWS_SESSION_TOKEN")
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			Source:          "Environment",
		}, nil
	})
}
