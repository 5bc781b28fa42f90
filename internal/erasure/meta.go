package erasure

import (
	"fmt"
	"strconv"
	"strings"
)

// MetaKey is the reserved user-metadata name under which the share binding
// travels on every stored share. Adapters apply their own wire prefix
// (x-amz-meta-, X-Object-Meta-) around it.
const MetaKey = "racs-fec"

// ShareIndexKey is the reserved user-metadata name carrying the share's
// position within the codeword.
const ShareIndexKey = "racs-share"

// Meta binds a set of shares back to the logical object. It is pinned to
// every share so a single HEAD can answer for the whole object.
type Meta struct {
	K    int
	M    int
	Size uint64
	MD5  string // 32 hex chars over the original payload
}

// String renders the compact single-header wire form, e.g. "1:2/3:1048576:9e107d...".
func (m Meta) String() string {
	return fmt.Sprintf("1:%d/%d:%d:%s", m.K, m.M, m.Size, m.MD5)
}

// ETag returns the quoted etag derived from the original payload digest.
func (m Meta) ETag() string { return `"` + m.MD5 + `"` }

// ParseMeta decodes the wire form produced by String.
func ParseMeta(s string) (Meta, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 || parts[0] != "1" {
		return Meta{}, fmt.Errorf("malformed fec metadata %q", s)
	}
	var meta Meta
	if _, err := fmt.Sscanf(parts[1], "%d/%d", &meta.K, &meta.M); err != nil {
		return Meta{}, fmt.Errorf("malformed fec parameters %q: %w", parts[1], err)
	}
	size, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Meta{}, fmt.Errorf("malformed fec size %q: %w", parts[2], err)
	}
	meta.Size = size
	meta.MD5 = parts[3]
	if len(meta.MD5) != 32 {
		return Meta{}, fmt.Errorf("malformed fec digest %q", parts[3])
	}
	if meta.K < 1 || meta.M < meta.K || meta.M > 256 {
		return Meta{}, fmt.Errorf("fec parameters out of range: k=%d m=%d", meta.K, meta.M)
	}
	return meta, nil
}
