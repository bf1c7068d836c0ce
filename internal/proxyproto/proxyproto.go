// Package proxyproto parses the PROXY protocol v1/v2 preamble that L4 load
// balancers prepend to a connection, recovering the real client address.
package proxyproto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
)

// v2Signature is the full 12-byte binary preamble signature.
var v2Signature = []byte{0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A}

// maxV1Line bounds a v1 header line including CRLF.
const maxV1Line = 107

var (
	ErrInvalidHeader      = errors.New("invalid PROXY protocol header")
	ErrUnsupportedVersion = errors.New("unsupported PROXY protocol version")
	ErrVersionDisabled    = errors.New("PROXY protocol version disabled")
)

// Config selects which preamble versions are accepted.
type Config struct {
	AllowV1 bool
	AllowV2 bool
}

// ReadHeader consumes the preamble from r and returns the declared source
// address. It must be called before any protocol bytes are read; a malformed
// preamble is fatal for the connection.
func ReadHeader(r io.Reader, cfg Config) (netip.AddrPort, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return netip.AddrPort{}, fmt.Errorf("reading preamble: %w", err)
	}

	switch first[0] {
	case 'P':
		if !cfg.AllowV1 {
			return netip.AddrPort{}, fmt.Errorf("%w: v1", ErrVersionDisabled)
		}
		return readV1(r)
	case 0x0D:
		if !cfg.AllowV2 {
			return netip.AddrPort{}, fmt.Errorf("%w: v2", ErrVersionDisabled)
		}
		return readV2(r)
	default:
		return netip.AddrPort{}, fmt.Errorf("%w: unknown signature byte 0x%02X", ErrInvalidHeader, first[0])
	}
}

// readV1 parses the ASCII line "PROXY <fam> <src> <dst> <sport> <dport>\r\n".
// The leading 'P' has already been consumed.
func readV1(r io.Reader) (netip.AddrPort, error) {
	line := []byte{'P'}
	var one [1]byte
	for len(line) < maxV1Line {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return netip.AddrPort{}, fmt.Errorf("reading v1 header: %w", err)
		}
		line = append(line, one[0])
		if len(line) >= 2 && line[len(line)-2] == '\r' && line[len(line)-1] == '\n' {
			break
		}
	}
	if !bytes.HasSuffix(line, []byte("\r\n")) {
		return netip.AddrPort{}, fmt.Errorf("%w: v1 header not CRLF terminated", ErrInvalidHeader)
	}

	parts := strings.Fields(strings.TrimSuffix(string(line), "\r\n"))
	if len(parts) < 6 || parts[0] != "PROXY" {
		return netip.AddrPort{}, fmt.Errorf("%w: malformed v1 header %q", ErrInvalidHeader, string(line))
	}

	switch parts[1] {
	case "TCP4", "TCP6":
	default:
		return netip.AddrPort{}, fmt.Errorf("%w: v1 family %q", ErrInvalidHeader, parts[1])
	}

	addr, err := netip.ParseAddrPort(net.JoinHostPort(parts[2], parts[4]))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: v1 source address: %v", ErrInvalidHeader, err)
	}
	return addr, nil
}

// readV2 parses the binary preamble. The leading 0x0D has been consumed.
func readV2(r io.Reader) (netip.AddrPort, error) {
	rest := make([]byte, len(v2Signature)-1+4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return netip.AddrPort{}, fmt.Errorf("reading v2 header: %w", err)
	}
	if !bytes.Equal(rest[:len(v2Signature)-1], v2Signature[1:]) {
		return netip.AddrPort{}, fmt.Errorf("%w: v2 signature mismatch", ErrInvalidHeader)
	}

	verCmd := rest[len(v2Signature)-1]
	famProto := rest[len(v2Signature)]
	addrLen := int(rest[len(v2Signature)+1])<<8 | int(rest[len(v2Signature)+2])

	if verCmd>>4 != 2 {
		return netip.AddrPort{}, ErrUnsupportedVersion
	}
	if verCmd&0x0F == 0 {
		// LOCAL command (health check), carries no usable address
		return netip.AddrPort{}, fmt.Errorf("%w: LOCAL command", ErrInvalidHeader)
	}

	block := make([]byte, addrLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return netip.AddrPort{}, fmt.Errorf("reading v2 address block: %w", err)
	}

	switch famProto {
	case 0x11: // AF_INET / STREAM
		if len(block) < 12 {
			return netip.AddrPort{}, fmt.Errorf("%w: v2 IPv4 block too short", ErrInvalidHeader)
		}
		ip, _ := netip.AddrFromSlice(block[0:4])
		port := uint16(block[8])<<8 | uint16(block[9])
		return netip.AddrPortFrom(ip, port), nil
	case 0x21: // AF_INET6 / STREAM
		if len(block) < 36 {
			return netip.AddrPort{}, fmt.Errorf("%w: v2 IPv6 block too short", ErrInvalidHeader)
		}
		ip, _ := netip.AddrFromSlice(block[0:16])
		port := uint16(block[32])<<8 | uint16(block[33])
		return netip.AddrPortFrom(ip, port), nil
	default:
		return netip.AddrPort{}, fmt.Errorf("%w: v2 family/transport 0x%02X", ErrInvalidHeader, famProto)
	}
}
