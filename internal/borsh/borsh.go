// Package borsh implements the subset of the Borsh binary format used by
// account and instruction layouts: little-endian integers, bools,
// length-prefixed strings, fixed byte arrays and public keys.
package borsh

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-bridge/internal/solana"
)

// ErrUnexpectedEOF is returned when a read runs past the end of the input.
var ErrUnexpectedEOF = errors.New("borsh: unexpected end of data")

// Writer appends Borsh-encoded values to a buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with capacity hint n.
func NewWriter(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// U8 writes a single byte.
func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// U16 writes a little-endian uint16.
func (w *Writer) U16(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

// U32 writes a little-endian uint32.
func (w *Writer) U32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// U64 writes a little-endian uint64.
func (w *Writer) U64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// Bool writes 1 or 0.
func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

// Raw appends b without a length prefix.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// String writes a u32 length prefix followed by the UTF-8 bytes.
func (w *Writer) String(s string) *Writer {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// PublicKey writes the 32 key bytes.
func (w *Writer) PublicKey(k solana.PublicKey) *Writer {
	w.buf = append(w.buf, k[:]...)
	return w
}

// OptionU64 writes a Borsh Option<u64>.
func (w *Writer) OptionU64(v *uint64) *Writer {
	if v == nil {
		return w.U8(0)
	}
	return w.U8(1).U64(*v)
}

// OptionU8 writes a Borsh Option<u8>.
func (w *Writer) OptionU8(v *uint8) *Writer {
	if v == nil {
		return w.U8(0)
	}
	return w.U8(1).U8(*v)
}

// COptionKey writes the C-compatible option used by SPL Token:
// a u32 tag followed by 32 bytes that are zero when absent.
func (w *Writer) COptionKey(k *solana.PublicKey) *Writer {
	if k == nil {
		w.U32(0)
		return w.PublicKey(solana.PublicKey{})
	}
	return w.U32(1).PublicKey(*k)
}

// COptionU64 writes an SPL Token COption<u64>.
func (w *Writer) COptionU64(v *uint64) *Writer {
	if v == nil {
		return w.U32(0).U64(0)
	}
	return w.U32(1).U64(*v)
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader decodes Borsh values. The first error is sticky: once a read fails
// every later read returns the zero value and Err reports the failure.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// U8 reads a byte.
func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Bool reads a byte and reports whether it is non-zero.
func (r *Reader) Bool() bool {
	return r.U8() != 0
}

// Raw reads n bytes. The returned slice aliases the input.
func (r *Reader) Raw(n int) []byte {
	return r.take(n)
}

// String reads a u32 length-prefixed string.
func (r *Reader) String() string {
	n := r.U32()
	if r.err != nil {
		return ""
	}
	if int(n) > r.Remaining() {
		r.err = fmt.Errorf("%w: string length %d exceeds remaining %d", ErrUnexpectedEOF, n, r.Remaining())
		return ""
	}
	return string(r.take(int(n)))
}

// PublicKey reads 32 bytes as a key.
func (r *Reader) PublicKey() solana.PublicKey {
	var k solana.PublicKey
	b := r.take(solana.PublicKeyLength)
	if b != nil {
		copy(k[:], b)
	}
	return k
}

// OptionU64 reads a Borsh Option<u64>.
func (r *Reader) OptionU64() *uint64 {
	if !r.Bool() {
		return nil
	}
	v := r.U64()
	if r.err != nil {
		return nil
	}
	return &v
}

// OptionU8 reads a Borsh Option<u8>.
func (r *Reader) OptionU8() *uint8 {
	if !r.Bool() {
		return nil
	}
	v := r.U8()
	if r.err != nil {
		return nil
	}
	return &v
}

// COptionKey reads an SPL Token COption<Pubkey>.
func (r *Reader) COptionKey() *solana.PublicKey {
	tag := r.U32()
	k := r.PublicKey()
	if r.err != nil || tag == 0 {
		return nil
	}
	return &k
}

// COptionU64 reads an SPL Token COption<u64>.
func (r *Reader) COptionU64() *uint64 {
	tag := r.U32()
	v := r.U64()
	if r.err != nil || tag == 0 {
		return nil
	}
	return &v
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err returns the first decoding error.
func (r *Reader) Err() error {
	return r.err
}
