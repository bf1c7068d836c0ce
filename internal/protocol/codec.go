package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxVarIntBytes is the longest legal VarInt encoding.
	MaxVarIntBytes = 5
	// MaxVarLongBytes is the longest legal VarLong encoding.
	MaxVarLongBytes = 10
	// MaxStringLength is the protocol default string limit in code points.
	MaxStringLength = 32767
)

var (
	ErrVarIntTooLong  = errors.New("varint exceeds 5 bytes")
	ErrVarLongTooLong = errors.New("varlong exceeds 10 bytes")
	ErrShortBuffer    = errors.New("unexpected end of packet")
	ErrStringTooLong  = errors.New("string exceeds length limit")
	ErrInvalidUTF8    = errors.New("string is not valid utf-8")
)

// Reader decodes protocol primitives from a packet payload.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many undecoded bytes are left.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadVarInt decodes an LEB128-style 7-bit group integer, max 5 bytes.
// Encodings whose fifth byte still has the continuation bit set are rejected.
func (r *Reader) ReadVarInt() (int32, error) {
	var v uint32
	for i := 0; i < MaxVarIntBytes; i++ {
		b, err := r.take(1)
		if err != nil {
			return 0, err
		}
		v |= uint32(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, ErrVarIntTooLong
}

// ReadVarLong decodes the 64-bit variant, max 10 bytes.
func (r *Reader) ReadVarLong() (int64, error) {
	var v uint64
	for i := 0; i < MaxVarLongBytes; i++ {
		b, err := r.take(1)
		if err != nil {
			return 0, err
		}
		v |= uint64(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			return int64(v), nil
		}
	}
	return 0, ErrVarLongTooLong
}

// ReadString decodes a VarInt-prefixed UTF-8 string bounded by max code points.
// The limit is checked before the bytes are consumed.
func (r *Reader) ReadString(max int) (string, error) {
	length, err := r.ReadVarInt()
	if err != nil {
		return "", err
	}
	// UTF-8 encodes a code point in at most 4 bytes
	if length < 0 || int(length) > max*4 {
		return "", ErrStringTooLong
	}
	raw, err := r.take(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	if utf8.RuneCount(raw) > max {
		return "", ErrStringTooLong
	}
	return string(raw), nil
}

// ReadUUID decodes two big-endian 64-bit halves.
func (r *Reader) ReadUUID() (uuid.UUID, error) {
	raw, err := r.take(16)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	copy(id[:], raw)
	return id, nil
}

// ReadBytes decodes a VarInt-prefixed byte array.
func (r *Reader) ReadBytes() ([]byte, error) {
	length, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if length < 0 || int(length) > r.Remaining() {
		return nil, ErrShortBuffer
	}
	raw, err := r.take(int(length))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// Writer encodes protocol primitives into a growing payload buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) WriteVarInt(v int32) {
	w.buf = AppendVarInt(w.buf, v)
}

func (w *Writer) WriteVarLong(v int64) {
	u := uint64(v)
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if u == 0 {
			return
		}
	}
}

func (w *Writer) WriteString(s string) {
	w.WriteVarInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) WriteUUID(id uuid.UUID) {
	w.buf = append(w.buf, id[:]...)
}

func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarInt(int32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// AppendVarInt appends the VarInt encoding of v to dst.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if u == 0 {
			return dst
		}
	}
}

// VarIntLen reports the encoded size of v in bytes.
func VarIntLen(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// errShortRead maps a truncated read into a codec error with context.
func errShortRead(what string, err error) error {
	return fmt.Errorf("reading %s: %w", what, err)
}
