package erasure

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodecValidation(t *testing.T) {
	tests := []struct {
		name string
		k, m int
		ok   bool
	}{
		{"typical", 2, 3, true},
		{"single data share", 1, 2, true},
		{"wide", 10, 14, true},
		{"zero k", 0, 3, false},
		{"k above m", 4, 3, false},
		{"m too large", 2, 300, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.k, tt.m)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.k, c.K())
				assert.Equal(t, tt.m, c.M())
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":     {},
		"one byte":  {0x42},
		"text":      []byte("Lorem ipsum dolor sit amet, consectetur adipiscing elit."),
		"unaligned": bytes.Repeat([]byte{1, 2, 3, 4, 5}, 1001),
	}
	codec, err := NewCodec(2, 3)
	require.NoError(t, err)

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			shares, meta, err := codec.Encode(payload)
			require.NoError(t, err)
			require.Len(t, shares, 3)
			assert.Equal(t, uint64(len(payload)), meta.Size)

			sum := md5.Sum(payload)
			assert.Equal(t, hex.EncodeToString(sum[:]), meta.MD5)

			got, err := codec.Decode(shares, meta)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestDecodeFromAnyKShares(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	payload := make([]byte, 1<<20) // the 1 MiB case from the seed suite
	_, err := rng.Read(payload)
	require.NoError(t, err)

	codec, err := NewCodec(2, 3)
	require.NoError(t, err)
	shares, meta, err := codec.Encode(payload)
	require.NoError(t, err)

	// Drop each share in turn; any remaining two must reconstruct.
	for drop := 0; drop < 3; drop++ {
		partial := make([][]byte, 3)
		for i := range shares {
			if i != drop {
				partial[i] = shares[i]
			}
		}
		got, err := codec.Decode(partial, meta)
		require.NoError(t, err, "dropping share %d", drop)
		assert.True(t, bytes.Equal(payload, got), "dropping share %d", drop)
	}
}

func TestDecodeTooFewShares(t *testing.T) {
	codec, err := NewCodec(2, 3)
	require.NoError(t, err)
	shares, meta, err := codec.Encode([]byte("some object payload"))
	require.NoError(t, err)

	partial := make([][]byte, 3)
	partial[0] = shares[0]
	_, err = codec.Decode(partial, meta)
	assert.Error(t, err)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	codec, err := NewCodec(2, 3)
	require.NoError(t, err)
	shares, meta, err := codec.Encode([]byte("payload under test"))
	require.NoError(t, err)

	// Corrupt a data share and hide the parity that would repair it: the
	// digest check is the last line of defense.
	shares[0][0] ^= 0xff
	shares[2] = nil
	_, err = codec.Decode(shares, meta)
	assert.Error(t, err)
}

func TestMetaWireForm(t *testing.T) {
	meta := Meta{K: 2, M: 3, Size: 1048576, MD5: "9e107d9d372bb6826bd81d3542a419d6"}
	wire := meta.String()
	assert.Equal(t, "1:2/3:1048576:9e107d9d372bb6826bd81d3542a419d6", wire)

	parsed, err := ParseMeta(wire)
	require.NoError(t, err)
	assert.Equal(t, meta, parsed)
	assert.Equal(t, `"9e107d9d372bb6826bd81d3542a419d6"`, meta.ETag())
}

func TestParseMetaRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"1:2/3:10",
		"2:2/3:10:9e107d9d372bb6826bd81d3542a419d6",
		"1:x/3:10:9e107d9d372bb6826bd81d3542a419d6",
		"1:2/3:huge:9e107d9d372bb6826bd81d3542a419d6",
		"1:2/3:10:tooshort",
		"1:0/3:10:9e107d9d372bb6826bd81d3542a419d6",
		"1:4/3:10:9e107d9d372bb6826bd81d3542a419d6",
	}
	for _, s := range bad {
		_, err := ParseMeta(s)
		assert.Error(t, err, "input %q", s)
	}
}
