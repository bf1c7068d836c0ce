package proxyproto

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowAll = Config{AllowV1: true, AllowV2: true}

func TestReadV1TCP4(t *testing.T) {
	r := bytes.NewReader([]byte("PROXY TCP4 203.0.113.9 192.0.2.1 54321 25565\r\nrest"))

	addr, err := ReadHeader(r, allowAll)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("203.0.113.9:54321"), addr)

	// the reader is left exactly at the first protocol byte
	rest := make([]byte, 4)
	_, err = r.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, "rest", string(rest))
}

func TestReadV1TCP6(t *testing.T) {
	r := bytes.NewReader([]byte("PROXY TCP6 2001:db8::1 2001:db8::2 54321 25565\r\n"))

	addr, err := ReadHeader(r, allowAll)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("[2001:db8::1]:54321"), addr)
}

func TestReadV1Malformed(t *testing.T) {
	cases := []string{
		"PROXY TCP4 203.0.113.9 192.0.2.1 54321\r\n", // missing field
		"PROXY UNIX a b 1 2\r\n",                     // bad family
		"PROXY TCP4 notanip 192.0.2.1 1 2\r\n",       // bad address
	}
	for _, line := range cases {
		_, err := ReadHeader(bytes.NewReader([]byte(line)), allowAll)
		assert.ErrorIs(t, err, ErrInvalidHeader, "line %q", line)
	}
}

func v2Header(famProto byte, block []byte) []byte {
	buf := append([]byte{}, v2Signature...)
	buf = append(buf, 0x21, famProto, byte(len(block)>>8), byte(len(block)))
	return append(buf, block...)
}

func TestReadV2IPv4(t *testing.T) {
	block := []byte{
		203, 0, 113, 9, // src
		192, 0, 2, 1, // dst
		0xD4, 0x31, // src port 54321
		0x63, 0xDD, // dst port 25565
	}
	r := bytes.NewReader(append(v2Header(0x11, block), "rest"...))

	addr, err := ReadHeader(r, allowAll)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("203.0.113.9:54321"), addr)

	rest := make([]byte, 4)
	_, err = r.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, "rest", string(rest))
}

func TestReadV2IPv6(t *testing.T) {
	src := netip.MustParseAddr("2001:db8::1").As16()
	dst := netip.MustParseAddr("2001:db8::2").As16()

	block := append(append(src[:], dst[:]...), 0xD4, 0x31, 0x63, 0xDD)
	addr, err := ReadHeader(bytes.NewReader(v2Header(0x21, block)), allowAll)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("[2001:db8::1]:54321"), addr)
}

func TestReadV2BadSignature(t *testing.T) {
	raw := v2Header(0x11, make([]byte, 12))
	raw[5] ^= 0xFF

	_, err := ReadHeader(bytes.NewReader(raw), allowAll)
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestReadV2UnknownFamily(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(v2Header(0x31, make([]byte, 12))), allowAll)
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestDisabledVersionsRejected(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte("PROXY TCP4 203.0.113.9 192.0.2.1 1 2\r\n")),
		Config{AllowV2: true})
	require.ErrorIs(t, err, ErrVersionDisabled)

	_, err = ReadHeader(bytes.NewReader(v2Header(0x11, make([]byte, 12))),
		Config{AllowV1: true})
	require.ErrorIs(t, err, ErrVersionDisabled)
}

func TestUnknownPreambleRejected(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte{0x10, 0x00}), allowAll)
	require.ErrorIs(t, err, ErrInvalidHeader)
}
