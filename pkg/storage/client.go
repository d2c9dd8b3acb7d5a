package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
)

// Scheme prefixes object locations accepted as image sources.
const Scheme = "s3://"

// Client provides S3 storage operations
type Client struct {
	s3Client *s3.Client
	bucket   string
}

// NewClient creates a new S3 client. With anonymous set, requests are
// unsigned, which is enough for public buckets.
func NewClient(ctx context.Context, bucket, region string, anonymous bool) (*Client, error) {
	slog.Info("s3_client_init", "bucket", bucket, "region", region, "anonymous", anonymous)

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if anonymous {
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	s3Client := s3.NewFromConfig(cfg)

	slog.Info("s3_client_created", "bucket", bucket)

	return &Client{
		s3Client: s3Client,
		bucket:   bucket,
	}, nil
}

// Bucket is the bucket this client reads and writes.
func (c *Client) Bucket() string { return c.bucket }

// WithBucket returns a client for another bucket sharing the same connection.
func (c *Client) WithBucket(bucket string) *Client {
	if bucket == "" || bucket == c.bucket {
		return c
	}
	return &Client{s3Client: c.s3Client, bucket: bucket}
}

// ParseURI splits s3://bucket/key. Both parts are required.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", "", errors.New(errors.ErrInvalidMediaType, "not an s3:// location: "+uri)
	}
	rest := strings.TrimPrefix(uri, Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", errors.New(errors.ErrInvalidMediaType, "s3 location needs a bucket and a key: "+uri)
	}
	return bucket, key, nil
}

// IsURI reports whether s names an S3 object.
func IsURI(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// Object is a downloaded object.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Size        int64
}

// Download fetches an object into memory.
func (c *Client) Download(ctx context.Context, key string) (*Object, error) {
	slog.Info("s3_download_start", "bucket", c.bucket, "s3_key", key)

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("s3_get_object_failed", "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	size, err := io.Copy(&buf, result.Body)
	if err != nil {
		slog.Error("s3_download_failed", "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to download object")
	}

	slog.Info("s3_download_complete",
		"s3_key", key,
		"size", humanize.Bytes(uint64(size)),
		"content_type", aws.ToString(result.ContentType),
	)

	return &Object{
		Key:         key,
		Data:        buf.Bytes(),
		ContentType: aws.ToString(result.ContentType),
		Size:        size,
	}, nil
}

// FetchBlob downloads uri as an image blob. The media type comes from the
// object's content type, falling back to the key's extension and content.
func (c *Client) FetchBlob(ctx context.Context, uri string) (*media.ImageBlob, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	obj, err := c.WithBucket(bucket).Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return obj.Blob(), nil
}

// Blob wraps the object as an image blob named after the key's base name.
// A generic content type is ignored in favour of the extension and content.
func (o *Object) Blob() *media.ImageBlob {
	name := path.Base(o.Key)
	return media.NewImageBlob(o.Data, media.DetectMediaType(name, o.ContentType, o.Data), name)
}

// Upload stores data under key
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	slog.Info("s3_upload_start", "bucket", c.bucket, "s3_key", key, "size", humanize.Bytes(uint64(len(data))))

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Error("s3_put_object_failed", "s3_key", key, "error", err)
		return errors.Wrap(err, "failed to upload object")
	}

	slog.Info("s3_upload_complete", "bucket", c.bucket, "s3_key", key)
	return nil
}

// ListObjects lists all objects in the bucket with a given prefix
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	slog.Info("s3_list_start", "bucket", c.bucket, "prefix", prefix)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("s3_list_failed", "prefix", prefix, "error", err)
			return nil, errors.Wrap(err, "failed to list objects")
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	slog.Info("s3_list_complete", "prefix", prefix, "object_count", len(keys))

	return keys, nil
}

// Exists checks if an object exists in S3
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			slog.Info("s3_object_not_found", "s3_key", key)
			return false, nil
		}
		slog.Error("s3_head_object_failed", "s3_key", key, "error", err)
		return false, errors.Wrap(err, "failed to check object existence")
	}

	return true, nil
}
