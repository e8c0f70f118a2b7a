// Package json provides JSON serialization for mcpbridge on top of goccy/go-json,
// with pooled buffers for request bodies and envelope encoding.
package json

import (
	"bytes"
	"io"

	"github.com/ajitpratap0/mcpbridge/pkg/pool"
	gojson "github.com/goccy/go-json"
)

// RawMessage is a raw encoded JSON value.
type RawMessage = gojson.RawMessage

// Number represents a JSON number literal.
type Number = gojson.Number

// Marshal is a drop-in replacement for encoding/json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// UnmarshalUseNumber decodes data keeping numbers as Number values so that
// integers survive without float64 rounding.
func UnmarshalUseNumber(data []byte, v interface{}) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// MarshalIndent is a replacement for encoding/json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

// NewEncoder returns an encoder with HTML escaping disabled.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// NewDecoder returns a streaming decoder reading from r.
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

// MarshalToBuffer marshals v into a pooled buffer without the trailing
// newline. The caller must release the buffer with pool.PutBuffer.
func MarshalToBuffer(v interface{}) (*bytes.Buffer, error) {
	buf := pool.GetBuffer()

	if err := NewEncoder(buf).Encode(v); err != nil {
		pool.PutBuffer(buf)
		return nil, err
	}

	if n := buf.Len(); n > 0 && buf.Bytes()[n-1] == '\n' {
		buf.Truncate(n - 1)
	}

	return buf, nil
}
