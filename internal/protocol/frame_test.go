package protocol

import (
	"bytes"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePacket(&buf, &StatusResponse{Body: `{"version":{}}`}))

	id, payload, err := ReadPacket(&buf, DefaultMaxPacketLength)
	require.NoError(t, err)
	assert.Equal(t, IDStatusResponse, id)

	got, err := NewReader(payload).ReadString(MaxStringLength)
	require.NoError(t, err)
	assert.Equal(t, `{"version":{}}`, got)
}

func TestReadPacketRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(AppendVarInt(nil, 5000))

	_, _, err := ReadPacket(&buf, 1000)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadPacketRejectsEmptyFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x00)

	_, _, err := ReadPacket(&buf, DefaultMaxPacketLength)
	require.ErrorIs(t, err, ErrEmptyFrame)
}

func TestReadPacketTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(AppendVarInt(nil, 10))
	buf.Write([]byte{0x00, 0x01})

	_, _, err := ReadPacket(&buf, DefaultMaxPacketLength)
	require.Error(t, err)
}

func TestWritePacketSingleWrite(t *testing.T) {
	w := &writeCounter{}
	require.NoError(t, WritePacket(w, &Pong{Payload: 42}))
	assert.Equal(t, 1, w.calls)
}

type writeCounter struct {
	calls int
}

func (w *writeCounter) Write(p []byte) (int, error) {
	w.calls++
	return len(p), nil
}

func TestHandshakeRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteVarInt(769)
	w.WriteString("play.example.com")
	w.WriteUint16(25565)
	w.WriteVarInt(NextStateLogin)

	var hs Handshake
	require.NoError(t, hs.Unmarshal(w.Bytes()))
	assert.Equal(t, int32(769), hs.ProtocolVersion)
	assert.Equal(t, "play.example.com", hs.ServerAddress)
	assert.Equal(t, uint16(25565), hs.ServerPort)
	assert.Equal(t, NextStateLogin, hs.NextState)
}

func TestWriteLegacyResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLegacyResponse(&buf, "1.21", "A server", 3, 20))

	raw := buf.Bytes()
	require.Equal(t, byte(0xFF), raw[0])

	units := int(raw[1])<<8 | int(raw[2])
	require.Equal(t, 3+units*2, len(raw))

	decoded := make([]uint16, units)
	for i := range decoded {
		decoded[i] = uint16(raw[3+i*2])<<8 | uint16(raw[3+i*2+1])
	}
	text := string(utf16.Decode(decoded))
	assert.Equal(t, "§1\x00127\x001.21\x00A server\x003\x0020", text)
}
