// Package xdrcodec provides the mechanical XDR (RFC 4506) primitive codec
// and SUN-RPC record-marking framing that the rest of this module builds
// on. Straight field-concatenation structs are marshalled through
// github.com/rasky/go-xdr instead (see Marshal/Unmarshal below); this
// package exists for the handful of wire shapes that library can't express
// on its own: bounded variable-length reads, and the record-mark header.
package xdrcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// DefaultMaxArrayLength bounds variable-length arrays and opaque/string
// payloads decoded without a caller-supplied limit, preventing unbounded
// allocation from a hostile or corrupt peer.
const DefaultMaxArrayLength = 1 << 20 // 1MiB

// Marshal encodes v using go-xdr's reflection-based mechanical codec. It is
// the single call site for types whose wire form is a straight
// concatenation of their fields in declaration order.
func Marshal(w io.Writer, v interface{}) error {
	_, err := xdr.Marshal(w, v)
	return err
}

// Unmarshal decodes into v using go-xdr's reflection-based mechanical
// codec. See Marshal.
func Unmarshal(r io.Reader, v interface{}) error {
	_, err := xdr.Unmarshal(r, v)
	return err
}

// WriteUint32 encodes an unsigned 32-bit integer, big-endian, per RFC 4506 §4.1.
func WriteUint32(w io.Writer, v uint32) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("xdr: write uint32: %w", err)
	}
	return nil
}

// ReadUint32 decodes an unsigned 32-bit integer, big-endian.
func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("xdr: read uint32: %w", err)
	}
	return v, nil
}

// WriteUint64 encodes an unsigned 64-bit integer, big-endian, per RFC 4506 §4.5.
func WriteUint64(w io.Writer, v uint64) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("xdr: write uint64: %w", err)
	}
	return nil
}

// ReadUint64 decodes an unsigned 64-bit integer, big-endian.
func ReadUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("xdr: read uint64: %w", err)
	}
	return v, nil
}

// WriteBool encodes a boolean as a 32-bit 0/1, per RFC 4506 §4.4.
func WriteBool(w io.Writer, v bool) error {
	var n uint32
	if v {
		n = 1
	}
	return WriteUint32(w, n)
}

// ReadBool decodes a boolean from a 32-bit word. Any value other than 0 or
// 1 is a MalformedMessage condition.
func ReadBool(r io.Reader) (bool, error) {
	v, err := ReadUint32(r)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("xdr: invalid boolean value %d", v)
	}
}

// paddingLen returns the number of zero bytes needed to round n up to the
// next multiple of 4.
func paddingLen(n uint32) uint32 {
	return (4 - (n % 4)) % 4
}

// WriteOpaque encodes variable-length opaque data: a uint32 length, the
// bytes themselves, and zero padding to the next 4-byte boundary, per
// RFC 4506 §4.9.
func WriteOpaque(w io.Writer, data []byte) error {
	if err := WriteUint32(w, uint32(len(data))); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("xdr: write opaque data: %w", err)
	}
	if pad := paddingLen(uint32(len(data))); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("xdr: write opaque padding: %w", err)
		}
	}
	return nil
}

// ReadOpaque decodes variable-length opaque data, rejecting lengths beyond
// maxLen (pass 0 to use DefaultMaxArrayLength).
func ReadOpaque(r io.Reader, maxLen uint32) ([]byte, error) {
	if maxLen == 0 {
		maxLen = DefaultMaxArrayLength
	}
	length, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if length > maxLen {
		return nil, fmt.Errorf("xdr: opaque length %d exceeds maximum %d", length, maxLen)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("xdr: read opaque data: %w", err)
	}
	if pad := paddingLen(length); pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return nil, fmt.Errorf("xdr: read opaque padding: %w", err)
		}
	}
	return buf, nil
}

// WriteString encodes a string exactly as WriteOpaque encodes its bytes,
// per RFC 4506 §4.11.
func WriteString(w io.Writer, s string) error {
	return WriteOpaque(w, []byte(s))
}

// ReadString decodes a string exactly as ReadOpaque decodes opaque data.
func ReadString(r io.Reader, maxLen uint32) (string, error) {
	b, err := ReadOpaque(r, maxLen)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteUint32Array encodes a variable-length array of uint32 words: a
// count followed by that many big-endian words, per RFC 4506 §4.13.
func WriteUint32Array(w io.Writer, words []uint32) error {
	if err := WriteUint32(w, uint32(len(words))); err != nil {
		return err
	}
	for i, word := range words {
		if err := WriteUint32(w, word); err != nil {
			return fmt.Errorf("xdr: write array element %d: %w", i, err)
		}
	}
	return nil
}

// ReadUint32Array decodes a variable-length array of uint32 words,
// rejecting element counts beyond maxCount.
func ReadUint32Array(r io.Reader, maxCount uint32) ([]uint32, error) {
	if maxCount == 0 {
		maxCount = DefaultMaxArrayLength
	}
	count, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if count > maxCount {
		return nil, fmt.Errorf("xdr: array length %d exceeds maximum %d", count, maxCount)
	}
	out := make([]uint32, count)
	for i := range out {
		if out[i], err = ReadUint32(r); err != nil {
			return nil, fmt.Errorf("xdr: read array element %d: %w", i, err)
		}
	}
	return out, nil
}

// BoundedReader caps the number of bytes readable from r, so that a
// variable-length decode nested inside it cannot over-read into whatever
// follows in the underlying stream.
func BoundedReader(r io.Reader, max uint32) io.Reader {
	return io.LimitReader(r, int64(max))
}

// EncodeToBytes is a convenience wrapper returning the XDR encoding of v as
// a standalone byte slice, used when building nested opaque payloads (e.g.
// an operation argument blob inside a COMPOUND).
func EncodeToBytes(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
