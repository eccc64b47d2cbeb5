package web

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

type CompressionType string

const (
	None CompressionType = "None"
	Zlib CompressionType = "Zlib"
	Gzip CompressionType = "Gzip"
	Lz4  CompressionType = "Lz4"
)

const (
	ZlibContentEncoding = "deflate"
	GzipContentEncoding = "gzip"
	Lz4ContentEncoding  = "lz4"
)

var (
	errUnknownEncoding = errors.New("unknown content encoding")
	errBodyTooLarge    = errors.New("body too large")
)

func ReadCompressionType(configCompressionType string) (CompressionType, error) {
	switch configCompressionType {
	case "", "none":
		return None, nil
	case "zlib":
		return Zlib, nil
	case "gzip":
		return Gzip, nil
	case "lz4":
		return Lz4, nil
	default:
		return None, errors.New("compression type must be one of 'none', 'zlib', 'gzip', 'lz4' (default none)")
	}
}

// ContentEncoding is the Content-Encoding header value for the compression type, empty for None.
func (ct CompressionType) ContentEncoding() string {
	switch ct {
	case Zlib:
		return ZlibContentEncoding
	case Gzip:
		return GzipContentEncoding
	case Lz4:
		return Lz4ContentEncoding
	default:
		return ""
	}
}

// Compress writes in to out using the compression type.
func (ct CompressionType) Compress(in []byte, out io.Writer) error {
	switch ct {
	case Zlib:
		return CompressWithZlib(in, out, zlib.DefaultCompression)
	case Gzip:
		return CompressWithGzip(in, out)
	case Lz4:
		return CompressWithLz4(in, out)
	default:
		_, err := out.Write(in)
		return err
	}
}

func CompressWithLz4(in []byte, out io.Writer) error {
	compressor := lz4.NewWriter(out)
	if _, err := compressor.Write(in); err != nil {
		_ = compressor.Close()
		return err
	}
	return compressor.Close()
}

func CompressWithZlib(in []byte, out io.Writer, compressionLevel int) error {
	compressor, err := zlib.NewWriterLevel(out, compressionLevel)
	if err != nil {
		return err
	}
	_, _ = compressor.Write(in) // error is propagated through Close
	return compressor.Close()
}

func CompressWithGzip(in []byte, out io.Writer) error {
	compressor := gzip.NewWriter(out)
	_, _ = compressor.Write(in) // error is propagated through Close
	return compressor.Close()
}

// decompressBody reverses the Content-Encoding of a request body, failing with errBodyTooLarge if the result
// would exceed maxSize bytes.
func decompressBody(encoding string, input []byte, maxSize int64) ([]byte, error) {
	switch encoding {
	case "identity", "":
		if int64(len(input)) > maxSize {
			return nil, errBodyTooLarge
		}
		return input, nil
	case ZlibContentEncoding:
		return DecompressWithZlib(input, maxSize)
	case GzipContentEncoding:
		return DecompressWithGzip(input, maxSize)
	case Lz4ContentEncoding:
		return DecompressWithLz4(input, maxSize)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownEncoding, encoding)
	}
}

func DecompressWithZlib(input []byte, maxSize int64) ([]byte, error) {
	decompressor, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer decompressor.Close()
	return readLimited(decompressor, maxSize)
}

func DecompressWithGzip(input []byte, maxSize int64) ([]byte, error) {
	decompressor, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer decompressor.Close()
	return readLimited(decompressor, maxSize)
}

func DecompressWithLz4(input []byte, maxSize int64) ([]byte, error) {
	return readLimited(lz4.NewReader(bytes.NewReader(input)), maxSize)
}

// readLimited reads r to the end, or fails with errBodyTooLarge once more than maxSize bytes were produced.
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	var out bytes.Buffer
	n, err := out.ReadFrom(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if n > maxSize {
		return nil, errBodyTooLarge
	}
	return out.Bytes(), nil
}
