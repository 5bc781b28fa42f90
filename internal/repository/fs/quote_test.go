package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The vectors come from the reference behavior of the filesystem name
// escaping; Quote and Unquote must stay exact inverses over them.
var quoteVectors = []struct {
	raw    string
	quoted string
}{
	{"test%name", "test%25name"},
	{"test/name", "test%2fname"},
	{"test%%/%name", "test%25%25%2f%25name"},
	{"end%", "end%25"},
	{"/start", "%2fstart"},
	{"dotted.key", "dotted%2ekey"},
	{"plain", "plain"},
	{"", ""},
}

func TestQuote(t *testing.T) {
	for _, v := range quoteVectors {
		assert.Equal(t, v.quoted, Quote(v.raw), "quote %q", v.raw)
	}
}

func TestUnquote(t *testing.T) {
	for _, v := range quoteVectors {
		assert.Equal(t, v.raw, Unquote(v.quoted), "unquote %q", v.quoted)
	}
}

func TestQuoteBijection(t *testing.T) {
	inputs := []string{
		"a%b/c.d#e", "%%%", "...", "///", "a", "%2f", "#hash/is#fine",
		"mixed%25already", "racs_unittest_bucket",
	}
	for _, s := range inputs {
		assert.Equal(t, s, Unquote(Quote(s)), "round trip %q", s)
	}
}
