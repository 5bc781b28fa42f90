package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racs-io/racs/internal/repository"
	racserr "github.com/racs-io/racs/pkg/errors"
)

func newTestRepo(t *testing.T) *FS {
	t.Helper()
	repo, err := New("local", Options{BaseDirectory: t.TempDir()})
	require.NoError(t, err)
	return repo
}

func TestNewRequiresExistingBase(t *testing.T) {
	_, err := New("local", Options{BaseDirectory: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestCreateBucketIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "racs_unittest_bucket"))
	// Creating an existing bucket is a silent success.
	require.NoError(t, repo.CreateBucket(ctx, "racs_unittest_bucket"))

	buckets, err := repo.ListBuckets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"racs_unittest_bucket"}, buckets)
}

func TestDeleteBucketErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.DeleteBucket(ctx, "does_not_exist")
	assert.True(t, racserr.IsCode(err, racserr.CodeNoSuchBucket))

	require.NoError(t, repo.CreateBucket(ctx, "b"))
	require.NoError(t, repo.PutObject(ctx, "b", "k", []byte("x"), "", nil))
	err = repo.DeleteBucket(ctx, "b")
	assert.True(t, racserr.IsCode(err, racserr.CodeBucketNotEmpty))

	require.NoError(t, repo.DeleteObject(ctx, "b", "k"))
	require.NoError(t, repo.DeleteBucket(ctx, "b"))
}

func TestPutGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "b"))

	payload := []byte("Lorem ipsum dolor sit amet, consectetur adipiscing elit.")
	meta := map[string]string{"foo": "test foo value", "bar": "test bar value"}
	require.NoError(t, repo.PutObject(ctx, "b", "k", payload, "app/x-racs-test", meta))

	obj, err := repo.GetObject(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, payload, obj.Data)
	assert.Equal(t, "app/x-racs-test", obj.ContentType)
	assert.Equal(t, meta, obj.UserMeta)
}

func TestPutToMissingBucket(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.PutObject(context.Background(), "nope", "k", []byte("x"), "", nil)
	assert.True(t, racserr.IsCode(err, racserr.CodeNoSuchBucket))
}

func TestGetMissingObject(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "b"))
	_, err := repo.GetObject(ctx, "b", "missing")
	assert.True(t, racserr.IsCode(err, racserr.CodeObjectNotFound))
	_, err = repo.GetObject(ctx, "nope", "missing")
	assert.True(t, racserr.IsCode(err, racserr.CodeNoSuchBucket))
}

func TestHeadHeaders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "b"))
	require.NoError(t, repo.PutObject(ctx, "b", "k", []byte("twelve bytes"), "text/plain", map[string]string{"custom": "v"}))

	headers, err := repo.Head(ctx, "b", "k")
	require.NoError(t, err)
	for _, want := range []string{"Etag", "Content-Length", "Last-Modified", "Content-Type"} {
		assert.Contains(t, headers, want)
	}
	assert.Equal(t, "12", headers["Content-Length"])
	assert.Equal(t, "text/plain", headers["Content-Type"])
	assert.Equal(t, "v", headers["custom"])
	// Etag comes quoted, ready for the wire.
	assert.Regexp(t, `^"[0-9a-f]{32}"$`, headers["Etag"])

	_, err = repo.Head(ctx, "b", "missing")
	assert.True(t, racserr.IsCode(err, racserr.CodeObjectNotFound))
}

func TestDeleteObjectIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "b"))

	// Deleting a key that never existed succeeds.
	require.NoError(t, repo.DeleteObject(ctx, "b", "never-there"))

	err := repo.DeleteObject(ctx, "no_bucket", "k")
	assert.True(t, racserr.IsCode(err, racserr.CodeNoSuchBucket))
}

func TestDeleteRemovesSidecar(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "b"))
	require.NoError(t, repo.PutObject(ctx, "b", "k", []byte("x"), "", nil))
	require.NoError(t, repo.DeleteObject(ctx, "b", "k"))

	dirents, err := os.ReadDir(repo.bucketPath("b"))
	require.NoError(t, err)
	assert.Empty(t, dirents)
}

func TestSpecialCharacterKeys(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "b"))

	keys := []string{"with/slash", "with%percent", "with.dot", "with#hash", "test%%/%name"}
	for _, key := range keys {
		require.NoError(t, repo.PutObject(ctx, "b", key, []byte("payload:"+key), "", nil))
	}
	for _, key := range keys {
		obj, err := repo.GetObject(ctx, "b", key)
		require.NoError(t, err, "key %q", key)
		assert.Equal(t, []byte("payload:"+key), obj.Data)
	}

	listing, err := repo.ListBucket(ctx, "b", repository.ListOptions{})
	require.NoError(t, err)
	var listed []string
	for _, e := range listing.Entries {
		listed = append(listed, e.Key)
	}
	assert.ElementsMatch(t, keys, listed)
}

func TestListBucketSkipsSidecarsAndFiltersPrefix(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateBucket(ctx, "b"))
	for _, key := range []string{"fookey1", "fookey2", "fookey3", "nonfoo1", "nonfoo2"} {
		require.NoError(t, repo.PutObject(ctx, "b", key, []byte("Lorem ipsum blah blah blah"), "", nil))
	}

	listing, err := repo.ListBucket(ctx, "b", repository.ListOptions{Prefix: "foo"})
	require.NoError(t, err)
	var keys []string
	for _, e := range listing.Entries {
		keys = append(keys, e.Key)
		assert.NotZero(t, e.Size)
		assert.NotEmpty(t, e.ETag)
	}
	assert.Equal(t, []string{"fookey1", "fookey2", "fookey3"}, keys)
	assert.Empty(t, listing.CommonPrefixes)

	_, err = repo.ListBucket(ctx, "missing", repository.ListOptions{})
	assert.True(t, racserr.IsCode(err, racserr.CodeNoSuchBucket))
}
