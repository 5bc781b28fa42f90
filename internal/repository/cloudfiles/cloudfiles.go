// Package cloudfiles implements the Rackspace Cloud Files repository
// adapter on the Swift API. Container names carry the configured prefix;
// '/' and '#' are forbidden in names and quoted as #xx.
package cloudfiles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ncw/swift/v2"

	"github.com/racs-io/racs/internal/repository"
	racserr "github.com/racs-io/racs/pkg/errors"
)

// Class is the adapter class name used in config files.
const Class = "RSRepository"

// Options configures a Cloud Files repository.
type Options struct {
	Username        string `yaml:"username"`
	APIKey          string `yaml:"api_key"`
	AuthURL         string `yaml:"auth_url"`
	Region          string `yaml:"region"`
	ContainerPrefix string `yaml:"container_prefix"`
}

// CloudFiles talks to one Cloud Files account.
type CloudFiles struct {
	name   string
	conn   *swift.Connection
	prefix string
}

// New creates the adapter and authenticates the connection.
func New(ctx context.Context, name string, opts Options) (*CloudFiles, error) {
	conn := &swift.Connection{
		UserName: opts.Username,
		ApiKey:   opts.APIKey,
		AuthUrl:  opts.AuthURL,
		Region:   opts.Region,
	}
	if err := conn.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("authenticate cloud files: %w", err)
	}
	return &CloudFiles{name: name, conn: conn, prefix: opts.ContainerPrefix}, nil
}

// Name returns the configured repository name.
func (c *CloudFiles) Name() string { return c.name }

// Class returns the config class name.
func (c *CloudFiles) Class() string { return Class }

// Serialized reports true: the legacy Cloud Files account endpoints
// throttle concurrent writers per connection, so all calls funnel through
// the manager's per-adapter lock.
func (c *CloudFiles) Serialized() bool { return true }

func (c *CloudFiles) containerName(bucket string) string {
	return c.prefix + Quote(bucket)
}

// CreateBucket creates the container; an existing container succeeds.
func (c *CloudFiles) CreateBucket(ctx context.Context, bucket string) error {
	if err := c.conn.ContainerCreate(ctx, c.containerName(bucket), nil); err != nil {
		return c.translate(err, bucket, "")
	}
	return nil
}

// DeleteBucket removes the container.
func (c *CloudFiles) DeleteBucket(ctx context.Context, bucket string) error {
	if err := c.conn.ContainerDelete(ctx, c.containerName(bucket)); err != nil {
		return c.translate(err, bucket, "")
	}
	return nil
}

// PutObject uploads one share with its user metadata.
func (c *CloudFiles) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string, userMeta map[string]string) error {
	headers := swift.Headers{}
	for k, v := range userMeta {
		headers["X-Object-Meta-"+k] = v
	}
	err := c.conn.ObjectPutBytes(ctx, c.containerName(bucket), Quote(key), data, contentType)
	if err != nil {
		return c.translate(err, bucket, key)
	}
	if len(headers) > 0 {
		if err := c.conn.ObjectUpdate(ctx, c.containerName(bucket), Quote(key), headers); err != nil {
			return c.translate(err, bucket, key)
		}
	}
	return nil
}

// GetObject downloads one share.
func (c *CloudFiles) GetObject(ctx context.Context, bucket, key string) (*repository.Object, error) {
	container := c.containerName(bucket)
	data, err := c.conn.ObjectGetBytes(ctx, container, Quote(key))
	if err != nil {
		return nil, c.translate(err, bucket, key)
	}
	info, headers, err := c.conn.Object(ctx, container, Quote(key))
	if err != nil {
		return nil, c.translate(err, bucket, key)
	}
	return &repository.Object{
		Data:        data,
		ContentType: info.ContentType,
		UserMeta:    userMetaFromHeaders(headers),
	}, nil
}

// Head returns response-shaped headers for one share.
func (c *CloudFiles) Head(ctx context.Context, bucket, key string) (map[string]string, error) {
	info, swiftHeaders, err := c.conn.Object(ctx, c.containerName(bucket), Quote(key))
	if err != nil {
		return nil, c.translate(err, bucket, key)
	}
	headers := map[string]string{
		"Content-Type":   info.ContentType,
		"Content-Length": strconv.FormatInt(info.Bytes, 10),
		"Etag":           `"` + info.Hash + `"`,
		"Last-Modified":  info.LastModified.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
	}
	for k, v := range userMetaFromHeaders(swiftHeaders) {
		headers[k] = v
	}
	return headers, nil
}

// DeleteObject removes one share; a missing key succeeds.
func (c *CloudFiles) DeleteObject(ctx context.Context, bucket, key string) error {
	err := c.conn.ObjectDelete(ctx, c.containerName(bucket), Quote(key))
	if err == swift.ObjectNotFound {
		return nil
	}
	if err != nil {
		return c.translate(err, bucket, key)
	}
	return nil
}

// ListBucket lists container objects and reverses the key quoting. The
// Swift-side prefix filters cannot see through quoting, so selection runs
// on the unquoted names.
func (c *CloudFiles) ListBucket(ctx context.Context, bucket string, opts repository.ListOptions) (*repository.Listing, error) {
	container := c.containerName(bucket)
	objects, err := c.conn.ObjectsAll(ctx, container, nil)
	if err != nil {
		return nil, c.translate(err, bucket, "")
	}

	byKey := make(map[string]swift.Object, len(objects))
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		key := Unquote(obj.Name)
		byKey[key] = obj
		keys = append(keys, key)
	}
	selected, commonPrefixes := repository.SelectKeys(keys, opts)

	listing := &repository.Listing{CommonPrefixes: commonPrefixes}
	for _, key := range selected {
		obj := byKey[key]
		listing.Entries = append(listing.Entries, repository.Entry{
			Key:          key,
			LastModified: obj.LastModified,
			ETag:         `"` + obj.Hash + `"`,
			Size:         obj.Bytes,
		})
	}
	return listing, nil
}

// ListBuckets returns logical names for containers carrying the prefix.
func (c *CloudFiles) ListBuckets(ctx context.Context) ([]string, error) {
	names, err := c.conn.ContainerNamesAll(ctx, nil)
	if err != nil {
		return nil, c.translate(err, "", "")
	}
	var buckets []string
	for _, name := range names {
		if !strings.HasPrefix(name, c.prefix) {
			continue
		}
		buckets = append(buckets, Unquote(strings.TrimPrefix(name, c.prefix)))
	}
	return buckets, nil
}

// translate maps swift sentinel errors into the closed kind set.
func (c *CloudFiles) translate(err error, bucket, key string) error {
	switch err {
	case swift.ContainerNotFound:
		return racserr.NoSuchBucket(bucket).WithCause(err)
	case swift.ObjectNotFound:
		return racserr.NotFound(bucket, key).WithCause(err)
	case swift.ContainerNotEmpty:
		return racserr.BucketNotEmpty(bucket).WithCause(err)
	}
	return racserr.Transient(c.name, err)
}

func userMetaFromHeaders(headers swift.Headers) map[string]string {
	var meta map[string]string
	for k, v := range headers {
		if strings.HasPrefix(k, "X-Object-Meta-") {
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[strings.ToLower(strings.TrimPrefix(k, "X-Object-Meta-"))] = v
		}
	}
	return meta
}

var _ repository.Repository = (*CloudFiles)(nil)
