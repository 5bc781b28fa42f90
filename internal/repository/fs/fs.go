// Package fs implements the filesystem repository: buckets are
// directories, objects are files, and object metadata lives in a JSON
// sidecar next to the data file.
package fs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/racs-io/racs/internal/repository"
	racserr "github.com/racs-io/racs/pkg/errors"
)

// Class is the adapter class name used in config files.
const Class = "FSRepository"

const metaSuffix = ".meta"

// Options configures a filesystem repository.
type Options struct {
	BaseDirectory string `yaml:"base_directory"`
}

// FS stores each bucket as a directory under the base directory.
type FS struct {
	name string
	base string
}

// New creates a filesystem repository rooted at opts.BaseDirectory, which
// must already exist.
func New(name string, opts Options) (*FS, error) {
	base, err := filepath.Abs(opts.BaseDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	info, err := os.Stat(base)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("base directory does not exist: %s", base)
	}
	return &FS{name: name, base: base}, nil
}

// Name returns the configured repository name.
func (f *FS) Name() string { return f.name }

// Class returns the config class name.
func (f *FS) Class() string { return Class }

// Serialized reports false: plain file operations are goroutine-safe.
func (f *FS) Serialized() bool { return false }

// sidecar is the serialized form of the metadata file.
type sidecar struct {
	ContentType string            `json:"content_type"`
	UserMeta    map[string]string `json:"user_meta,omitempty"`
	ETag        string            `json:"etag"`
	Owner       string            `json:"owner,omitempty"`
}

func (f *FS) bucketPath(bucket string) string {
	return filepath.Join(f.base, Quote(bucket))
}

func (f *FS) keyPath(bucket, key string) string {
	return filepath.Join(f.bucketPath(bucket), Quote(key))
}

func (f *FS) requireBucket(bucket string) error {
	if _, err := os.Stat(f.bucketPath(bucket)); err != nil {
		return racserr.NoSuchBucket(bucket)
	}
	return nil
}

// CreateBucket makes the bucket directory; an existing bucket is a silent
// success.
func (f *FS) CreateBucket(_ context.Context, bucket string) error {
	bp := f.bucketPath(bucket)
	if _, err := os.Stat(bp); err == nil {
		return nil
	}
	if err := os.Mkdir(bp, 0o750); err != nil && !os.IsExist(err) {
		return racserr.Transient(f.name, err)
	}
	return nil
}

// DeleteBucket removes the bucket directory; it must be empty.
func (f *FS) DeleteBucket(_ context.Context, bucket string) error {
	bp := f.bucketPath(bucket)
	if _, err := os.Stat(bp); err != nil {
		return racserr.NoSuchBucket(bucket)
	}
	if err := os.Remove(bp); err != nil {
		if dirNotEmpty(err) {
			return racserr.BucketNotEmpty(bucket)
		}
		return racserr.Transient(f.name, err)
	}
	return nil
}

func dirNotEmpty(err error) bool {
	// ENOTEMPTY surfaces as a *PathError wrapping the errno; the text is
	// stable across unix platforms.
	return strings.Contains(err.Error(), "not empty")
}

// PutObject writes the data file, then the sidecar.
func (f *FS) PutObject(_ context.Context, bucket, key string, data []byte, contentType string, userMeta map[string]string) error {
	if err := f.requireBucket(bucket); err != nil {
		return err
	}
	kp := f.keyPath(bucket, key)
	if err := os.WriteFile(kp, data, 0o640); err != nil {
		return racserr.Transient(f.name, err)
	}
	sum := md5.Sum(data)
	sc := sidecar{
		ContentType: contentType,
		UserMeta:    userMeta,
		ETag:        hex.EncodeToString(sum[:]),
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return racserr.Transient(f.name, err)
	}
	if err := os.WriteFile(kp+metaSuffix, raw, 0o640); err != nil {
		return racserr.Transient(f.name, err)
	}
	return nil
}

func (f *FS) readSidecar(bucket, key string) (*sidecar, error) {
	raw, err := os.ReadFile(f.keyPath(bucket, key) + metaSuffix)
	if err != nil {
		return nil, err
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetObject reads the data file and its sidecar.
func (f *FS) GetObject(_ context.Context, bucket, key string) (*repository.Object, error) {
	if err := f.requireBucket(bucket); err != nil {
		return nil, err
	}
	kp := f.keyPath(bucket, key)
	data, err := os.ReadFile(kp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, racserr.NotFound(bucket, key)
		}
		return nil, racserr.Transient(f.name, err)
	}
	sc, err := f.readSidecar(bucket, key)
	if err != nil {
		// Data without metadata means a torn write; treat the object as
		// missing rather than inventing attributes.
		if os.IsNotExist(err) {
			return nil, racserr.NotFound(bucket, key)
		}
		return nil, racserr.Transient(f.name, err)
	}
	return &repository.Object{
		Data:        data,
		ContentType: sc.ContentType,
		UserMeta:    sc.UserMeta,
	}, nil
}

// Head stats the data file and merges the sidecar metadata.
func (f *FS) Head(_ context.Context, bucket, key string) (map[string]string, error) {
	if err := f.requireBucket(bucket); err != nil {
		return nil, err
	}
	kp := f.keyPath(bucket, key)
	info, err := os.Stat(kp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, racserr.NotFound(bucket, key)
		}
		return nil, racserr.Transient(f.name, err)
	}
	sc, err := f.readSidecar(bucket, key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, racserr.NotFound(bucket, key)
		}
		return nil, racserr.Transient(f.name, err)
	}
	headers := map[string]string{
		"Content-Type":   sc.ContentType,
		"Content-Length": strconv.FormatInt(info.Size(), 10),
		"Etag":           `"` + sc.ETag + `"`,
		"Last-Modified":  info.ModTime().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
	}
	for k, v := range sc.UserMeta {
		headers[k] = v
	}
	return headers, nil
}

// DeleteObject removes the data file and sidecar; a missing key succeeds.
func (f *FS) DeleteObject(_ context.Context, bucket, key string) error {
	if err := f.requireBucket(bucket); err != nil {
		return err
	}
	kp := f.keyPath(bucket, key)
	if err := os.Remove(kp); err != nil && !os.IsNotExist(err) {
		return racserr.Transient(f.name, err)
	}
	if err := os.Remove(kp + metaSuffix); err != nil && !os.IsNotExist(err) {
		return racserr.Transient(f.name, err)
	}
	return nil
}

// ListBucket lists the bucket directory, skipping sidecars.
func (f *FS) ListBucket(_ context.Context, bucket string, opts repository.ListOptions) (*repository.Listing, error) {
	bp := f.bucketPath(bucket)
	dirents, err := os.ReadDir(bp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, racserr.NoSuchBucket(bucket)
		}
		return nil, racserr.Transient(f.name, err)
	}

	var keys []string
	for _, de := range dirents {
		if strings.HasSuffix(de.Name(), metaSuffix) {
			continue
		}
		keys = append(keys, Unquote(de.Name()))
	}
	selected, commonPrefixes := repository.SelectKeys(keys, opts)

	listing := &repository.Listing{CommonPrefixes: commonPrefixes}
	for _, key := range selected {
		info, err := os.Stat(f.keyPath(bucket, key))
		if err != nil {
			continue // deleted between readdir and stat
		}
		sc, err := f.readSidecar(bucket, key)
		if err != nil {
			continue
		}
		listing.Entries = append(listing.Entries, repository.Entry{
			Key:          key,
			LastModified: info.ModTime().UTC(),
			ETag:         `"` + sc.ETag + `"`,
			Size:         info.Size(),
			UserMeta:     sc.UserMeta,
		})
	}
	return listing, nil
}

// ListBuckets lists the base directory.
func (f *FS) ListBuckets(_ context.Context) ([]string, error) {
	dirents, err := os.ReadDir(f.base)
	if err != nil {
		return nil, racserr.Transient(f.name, err)
	}
	var buckets []string
	for _, de := range dirents {
		if de.IsDir() {
			buckets = append(buckets, Unquote(de.Name()))
		}
	}
	return buckets, nil
}
