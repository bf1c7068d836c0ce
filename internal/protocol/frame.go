package protocol

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
)

// DefaultMaxPacketLength bounds inbound frames unless configured otherwise.
const DefaultMaxPacketLength = 10_000

// LegacyPingByte is the first byte of a pre-Netty server list ping.
const LegacyPingByte = 0xFE

var (
	ErrFrameTooLarge = errors.New("frame exceeds max packet length")
	ErrEmptyFrame    = errors.New("empty frame")
)

// Outbound is a clientbound packet that knows its id and payload encoding.
type Outbound interface {
	ID() int32
	Marshal(w *Writer)
}

// readVarIntFrom decodes a VarInt byte-by-byte from the stream. Used only for
// the frame length prefix; everything else is decoded from the frame buffer.
func readVarIntFrom(r io.Reader) (int32, error) {
	var one [1]byte
	var v uint32
	for i := 0; i < MaxVarIntBytes; i++ {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return 0, err
		}
		v |= uint32(one[0]&0x7F) << (7 * i)
		if one[0]&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, ErrVarIntTooLong
}

// ReadPacket reads one frame and splits it into packet id and payload.
// The payload slice is freshly allocated and safe to retain.
func ReadPacket(r io.Reader, max int32) (int32, []byte, error) {
	length, err := readVarIntFrom(r)
	if err != nil {
		return 0, nil, errShortRead("frame length", err)
	}
	if length <= 0 {
		return 0, nil, ErrEmptyFrame
	}
	if length > max {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, max)
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return 0, nil, errShortRead("frame body", err)
	}

	fr := NewReader(frame)
	id, err := fr.ReadVarInt()
	if err != nil {
		return 0, nil, errShortRead("packet id", err)
	}
	return id, frame[fr.off:], nil
}

// WritePacket buffers packet id and payload, prepends the VarInt frame length
// and writes the whole frame in a single Write call.
func WritePacket(w io.Writer, p Outbound) error {
	body := NewWriter()
	body.WriteVarInt(p.ID())
	p.Marshal(body)

	payload := body.Bytes()
	frame := AppendVarInt(make([]byte, 0, VarIntLen(int32(len(payload)))+len(payload)), int32(len(payload)))
	frame = append(frame, payload...)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing packet 0x%02X: %w", p.ID(), err)
	}
	return nil
}

// WriteLegacyResponse answers a legacy (0xFE) server list ping. The body is a
// 0xFF kick packet carrying a UTF-16BE string of §-delimited fields.
func WriteLegacyResponse(w io.Writer, versionName, motd string, online, max int) error {
	text := fmt.Sprintf("§1\x00127\x00%s\x00%s\x00%d\x00%d", versionName, motd, online, max)
	units := utf16.Encode([]rune(text))

	buf := make([]byte, 0, 3+len(units)*2)
	buf = append(buf, 0xFF, byte(len(units)>>8), byte(len(units)))
	for _, u := range units {
		buf = append(buf, byte(u>>8), byte(u))
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing legacy response: %w", err)
	}
	return nil
}
