package proto

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression identifies the framing of a compressed payload.
type Compression uint8

const (
	// CompressionNone marks raw UTF-8 content.
	CompressionNone Compression = iota
	// CompressionGzip marks gzip framing. This is what Compress produces.
	CompressionGzip
	// CompressionZlib marks zlib framing, accepted from older peers.
	CompressionZlib
)

// MaxDecompressedSize bounds the output of Decompress.
const MaxDecompressedSize = 16 << 20

var errUnknownFraming = errors.New("unknown compression framing")

// String returns the string representation of the compression type.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. zlib streams are recognised by their header
// and decoded as well.
func Decompress(data []byte) ([]byte, error) {
	var (
		reader io.ReadCloser
		err    error
	)
	switch detectFraming(data) {
	case CompressionGzip:
		reader, err = gzip.NewReader(bytes.NewReader(data))
	case CompressionZlib:
		reader, err = zlib.NewReader(bytes.NewReader(data))
	default:
		return nil, errUnknownFraming
	}
	if err != nil {
		return nil, fmt.Errorf("open compressed stream: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(reader, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	if n > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", MaxDecompressedSize)
	}
	return buf.Bytes(), nil
}

func detectFraming(data []byte) Compression {
	if len(data) < 2 {
		return CompressionNone
	}
	if data[0] == 0x1f && data[1] == 0x8b {
		return CompressionGzip
	}
	// RFC 1950: deflate method, and the header checksum is a multiple of 31.
	if data[0]&0x0f == 8 && (uint16(data[0])<<8|uint16(data[1]))%31 == 0 {
		return CompressionZlib
	}
	return CompressionNone
}
