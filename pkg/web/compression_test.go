package web

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCompressionType(t *testing.T) {
	t.Parallel()
	for input, expected := range map[string]CompressionType{
		"":     None,
		"none": None,
		"zlib": Zlib,
		"gzip": Gzip,
		"lz4":  Lz4,
	} {
		ct, err := ReadCompressionType(input)
		require.NoError(t, err)
		assert.Equal(t, expected, ct)
	}
	_, err := ReadCompressionType("snappy")
	require.Error(t, err)
}

func TestCompressDecompress(t *testing.T) {
	t.Parallel()
	input := []byte(`{"counters":{"a":1}}`)
	for _, ct := range []CompressionType{None, Zlib, Gzip, Lz4} {
		var buf bytes.Buffer
		require.NoError(t, ct.Compress(input, &buf))
		out, err := decompressBody(ct.ContentEncoding(), buf.Bytes(), int64(len(input)))
		require.NoError(t, err, string(ct))
		assert.Equal(t, input, out, string(ct))
	}
}

func TestDecompressUnknownEncoding(t *testing.T) {
	t.Parallel()
	_, err := decompressBody("br", nil, maxDecompressedBytes)
	require.ErrorIs(t, err, errUnknownEncoding)
}

func TestDecompressLimitsOutput(t *testing.T) {
	t.Parallel()
	input := make([]byte, 1<<20)
	for _, ct := range []CompressionType{None, Zlib, Gzip, Lz4} {
		var buf bytes.Buffer
		require.NoError(t, ct.Compress(input, &buf))
		_, err := decompressBody(ct.ContentEncoding(), buf.Bytes(), int64(len(input))-1)
		require.ErrorIs(t, err, errBodyTooLarge, string(ct))
	}
}
