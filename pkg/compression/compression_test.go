package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = []byte("JAVA PROFILE 1.0.2\x00 heap dump body heap dump body heap dump body")

func TestCompressorRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeGzip, TypeZstd, TypeNone} {
		t.Run(typ.String(), func(t *testing.T) {
			c, err := New(typ, LevelDefault)
			require.NoError(t, err)
			defer Close(c)

			compressed, err := c.Compress(payload)
			require.NoError(t, err)
			assert.Equal(t, typ, DetectType(compressed))

			out, err := c.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
			assert.Equal(t, typ, c.Type())
		})
	}
}

func TestNewReader(t *testing.T) {
	for _, typ := range []Type{TypeGzip, TypeZstd, TypeNone} {
		t.Run(typ.String(), func(t *testing.T) {
			c, err := New(typ, LevelFastest)
			require.NoError(t, err)
			defer Close(c)
			compressed, err := c.Compress(payload)
			require.NoError(t, err)

			rc, detected, err := NewReader(bytes.NewReader(compressed))
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, typ, detected)

			out, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestNewReader_ShortInput(t *testing.T) {
	rc, typ, err := NewReader(bytes.NewReader([]byte{0x01}))
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, TypeNone, typ)
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ext  string
	}{
		{"gzip", TypeGzip, ".gz"},
		{"GZ", TypeGzip, ".gz"},
		{"zstd", TypeZstd, ".zst"},
		{"zst", TypeZstd, ".zst"},
		{"", TypeNone, ""},
		{"lz4", TypeNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ext, got.Extension())
		})
	}
}

func TestNewWriter_StreamsDecodableOutput(t *testing.T) {
	for _, typ := range []Type{TypeGzip, TypeZstd, TypeNone} {
		t.Run(typ.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, typ, LevelBest)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			rc, detected, err := NewReader(&buf)
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, typ, detected)
			out, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}

	_, err := NewWriter(io.Discard, Type(7), LevelDefault)
	assert.Error(t, err)
}
