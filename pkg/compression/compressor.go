// Package compression compresses encoded envelopes before they are written to
// the Redis transport.
//
// # Algorithm Selection
//
//   - Snappy/S2: fastest, moderate ratio
//   - LZ4: very fast, decent ratio
//   - Zstd: best ratio, good speed
//   - Gzip: widest compatibility
//
// Compressed payloads are framed with a two byte header (a magic byte and an
// algorithm id) so a reader can tell them apart from plain JSON, which always
// starts with '{'.
//
//	comp, err := compression.NewCompressor(compression.Zstd)
//	framed, err := compression.Frame(comp, data)
//	original, err := compression.Unframe(framed)
package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/ajitpratap0/mcpbridge/pkg/pool"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// frameMagic marks a framed payload. It can never start a JSON document.
const frameMagic byte = 0x00

// maxDecompressedSize bounds a single decompressed envelope.
const maxDecompressedSize = 64 << 20

// ids are part of the frame format and must not be renumbered
var algorithmIDs = map[Algorithm]byte{
	Gzip:   1,
	Snappy: 2,
	LZ4:    3,
	Zstd:   4,
	S2:     5,
}

// ParseAlgorithm maps a configured name onto an Algorithm. The empty string
// means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(name)
	if name == "" || alg == None {
		return None, nil
	}
	if _, ok := algorithmIDs[alg]; !ok {
		return "", fmt.Errorf("unsupported compression algorithm: %s", name)
	}
	return alg, nil
}

// Compressor compresses and decompresses whole payloads.
// All implementations are safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() Algorithm
}

var (
	cacheMu sync.Mutex
	cache   = map[Algorithm]Compressor{}
)

// NewCompressor returns the shared compressor for alg.
func NewCompressor(alg Algorithm) (Compressor, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if c, ok := cache[alg]; ok {
		return c, nil
	}

	var c Compressor
	switch alg {
	case None, "":
		c = noneCompressor{}
	case Gzip:
		c = newGzipCompressor()
	case Snappy:
		c = snappyCompressor{}
	case LZ4:
		c = lz4Compressor{}
	case Zstd:
		c = newZstdCompressor()
	case S2:
		c = s2Compressor{}
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", alg)
	}
	cache[alg] = c
	return c, nil
}

// Frame compresses data and prefixes the frame header. With None the data is
// returned unchanged.
func Frame(c Compressor, data []byte) ([]byte, error) {
	if c.Algorithm() == None {
		return data, nil
	}
	compressed, err := c.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress with %s: %w", c.Algorithm(), err)
	}
	out := make([]byte, 0, len(compressed)+2)
	out = append(out, frameMagic, algorithmIDs[c.Algorithm()])
	return append(out, compressed...), nil
}

// IsFramed reports whether data carries a compression frame header
func IsFramed(data []byte) bool {
	return len(data) >= 2 && data[0] == frameMagic
}

// Unframe reverses Frame. Unframed input is returned unchanged.
func Unframe(data []byte) ([]byte, error) {
	if !IsFramed(data) {
		return data, nil
	}
	for alg, id := range algorithmIDs {
		if id != data[1] {
			continue
		}
		c, err := NewCompressor(alg)
		if err != nil {
			return nil, err
		}
		out, err := c.Decompress(data[2:])
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s frame: %w", alg, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown compression frame id %d", data[1])
}

// readAll copies a bounded stream through a pooled buffer
func readAll(r io.Reader) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	n, err := io.Copy(buf, io.LimitReader(r, maxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if n > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecompressedSize)
	}
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Algorithm() Algorithm                   { return None }

// Gzip compressor
type gzipCompressor struct {
	writers sync.Pool
}

func newGzipCompressor() *gzipCompressor {
	gc := &gzipCompressor{}
	gc.writers.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.DefaultCompression)
		return w
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	w := gc.writers.Get().(*gzip.Writer)
	defer gc.writers.Put(w)

	w.Reset(buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}

func (gc *gzipCompressor) Algorithm() Algorithm { return Gzip }

// Snappy compressor
type snappyCompressor struct{}

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, err
	}
	if n > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecompressedSize)
	}
	return snappy.Decode(nil, data)
}

func (snappyCompressor) Algorithm() Algorithm { return Snappy }

// S2 compressor (Snappy-compatible but better compression)
type s2Compressor struct{}

func (s2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (s2Compressor) Decompress(data []byte) ([]byte, error) {
	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, err
	}
	if n > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecompressedSize)
	}
	return s2.Decode(nil, data)
}

func (s2Compressor) Algorithm() Algorithm { return S2 }

// LZ4 compressor
type lz4Compressor struct{}

func (lz4Compressor) Compress(data []byte) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	w := lz4.NewWriter(buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return readAll(lz4.NewReader(bytes.NewReader(data)))
}

func (lz4Compressor) Algorithm() Algorithm { return LZ4 }

// Zstd compressor
type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCompressor() *zstdCompressor {
	// EncodeAll and DecodeAll are safe for concurrent use
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecompressedSize))
	return &zstdCompressor{encoder: enc, decoder: dec}
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.encoder.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	return zc.decoder.DecodeAll(data, nil)
}

func (zc *zstdCompressor) Algorithm() Algorithm { return Zstd }
