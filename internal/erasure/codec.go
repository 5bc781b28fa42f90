// Package erasure implements the (k,m) Reed-Solomon codec that turns an
// object into m shares, any k of which reconstruct it, and the Meta header
// that binds shares back to the logical object.
package erasure

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/reedsolomon"

	racserr "github.com/racs-io/racs/pkg/errors"
)

// Codec encodes objects into m shares of which any k reconstruct.
type Codec struct {
	k   int
	m   int
	enc reedsolomon.Encoder
}

// NewCodec creates a codec for the given parameters. Requires 1 <= k <= m <= 256.
func NewCodec(k, m int) (*Codec, error) {
	if k < 1 || m < k || m > 256 {
		return nil, fmt.Errorf("invalid erasure parameters: k=%d m=%d", k, m)
	}
	enc, err := reedsolomon.New(k, m-k)
	if err != nil {
		return nil, fmt.Errorf("init reed-solomon encoder: %w", err)
	}
	return &Codec{k: k, m: m, enc: enc}, nil
}

// K returns the reconstruction threshold.
func (c *Codec) K() int { return c.k }

// M returns the total share count.
func (c *Codec) M() int { return c.m }

// Encode splits data into k data shares, computes m-k parity shares, and
// returns all m together with the Meta binding. Shares are index-ordered;
// share i belongs to repository i.
func (c *Codec) Encode(data []byte) ([][]byte, Meta, error) {
	sum := md5.Sum(data)
	meta := Meta{
		K:    c.k,
		M:    c.m,
		Size: uint64(len(data)),
		MD5:  hex.EncodeToString(sum[:]),
	}

	// Split pads the last data share with zeros; Meta.Size recovers the
	// original length on decode. Split rejects empty input, so zero-byte
	// objects encode as a single zero byte.
	padded := data
	if len(padded) == 0 {
		padded = []byte{0}
	}
	shares, err := c.enc.Split(padded)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("split payload: %w", err)
	}
	if err := c.enc.Encode(shares); err != nil {
		return nil, Meta{}, fmt.Errorf("compute parity: %w", err)
	}
	return shares, meta, nil
}

// Decode reconstructs the original payload from any k shares. The input
// slice must have length m with nil entries for missing shares. The result
// is truncated to meta.Size and verified against meta.MD5.
func (c *Codec) Decode(shares [][]byte, meta Meta) ([]byte, error) {
	if len(shares) != c.m {
		return nil, fmt.Errorf("expected %d share slots, got %d", c.m, len(shares))
	}
	if meta.K != c.k || meta.M != c.m {
		return nil, fmt.Errorf("share metadata (%d/%d) does not match codec (%d/%d)",
			meta.K, meta.M, c.k, c.m)
	}
	if err := c.enc.ReconstructData(shares); err != nil {
		return nil, fmt.Errorf("reconstruct payload: %w", err)
	}

	shareSize := len(shares[0])
	var buf bytes.Buffer
	buf.Grow(shareSize * c.k)
	if err := c.enc.Join(&buf, shares, shareSize*c.k); err != nil {
		return nil, fmt.Errorf("join shares: %w", err)
	}
	data := buf.Bytes()
	if uint64(len(data)) < meta.Size {
		return nil, fmt.Errorf("reconstructed %d bytes, metadata records %d", len(data), meta.Size)
	}
	data = data[:meta.Size]

	sum := md5.Sum(data)
	if hex.EncodeToString(sum[:]) != meta.MD5 {
		return nil, racserr.New(racserr.CodeDecodeMismatch,
			"reconstructed digest does not match recorded digest %s", meta.MD5)
	}
	return data, nil
}
