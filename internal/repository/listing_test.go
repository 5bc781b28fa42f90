package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectKeysPrefix(t *testing.T) {
	// The seed scenario: five keys, prefix "foo", no delimiter.
	keys := []string{"fookey1", "nonfoo1", "fookey2", "nonfoo2", "fookey3"}
	selected, prefixes := SelectKeys(keys, ListOptions{Prefix: "foo"})
	assert.Equal(t, []string{"fookey1", "fookey2", "fookey3"}, selected)
	assert.Empty(t, prefixes)
}

func TestSelectKeysDelimiter(t *testing.T) {
	keys := []string{"a/one", "a/two", "b/one", "top"}
	selected, prefixes := SelectKeys(keys, ListOptions{Delimiter: "/"})
	assert.Equal(t, []string{"top"}, selected)
	assert.Equal(t, []string{"a/", "b/"}, prefixes)
}

func TestSelectKeysPrefixAndDelimiter(t *testing.T) {
	keys := []string{"photos/2020/a.jpg", "photos/2020/b.jpg", "photos/2021/c.jpg", "photos/index"}
	selected, prefixes := SelectKeys(keys, ListOptions{Prefix: "photos/", Delimiter: "/"})
	assert.Equal(t, []string{"photos/index"}, selected)
	assert.Equal(t, []string{"photos/2020/", "photos/2021/"}, prefixes)
}

func TestSelectKeysMarker(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	selected, _ := SelectKeys(keys, ListOptions{Marker: "b"})
	assert.Equal(t, []string{"c", "d"}, selected)

	// A marker between keys resumes at the next one.
	selected, _ = SelectKeys(keys, ListOptions{Marker: "bb"})
	assert.Equal(t, []string{"c", "d"}, selected)
}

func TestSelectKeysMaxKeys(t *testing.T) {
	keys := []string{"c", "a", "d", "b"}
	selected, _ := SelectKeys(keys, ListOptions{MaxKeys: 2})
	assert.Equal(t, []string{"a", "b"}, selected)
}

func TestSelectKeysEmpty(t *testing.T) {
	selected, prefixes := SelectKeys(nil, ListOptions{Prefix: "x"})
	assert.Empty(t, selected)
	assert.Empty(t, prefixes)
}
