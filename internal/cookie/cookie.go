// Package cookie seals and verifies the authentication and session cookies
// that carry player identity across reconnects.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/passage/internal/protocol"
)

const (
	// AuthKey is the cookie-storage slot of the sealed authentication cookie.
	AuthKey = "passage:authentication"
	// SessionKey is the cookie-storage slot of the plain session cookie.
	SessionKey = "passage:session"

	// DefaultAuthExpiry is the fallback auth cookie window (operators are
	// advised to configure something closer to a minute).
	DefaultAuthExpiry = 6 * time.Hour

	// macLen is the HMAC-SHA-256 signature length prepended to the payload.
	macLen = sha256.Size
)

var (
	ErrBadSignature = errors.New("cookie signature invalid")
	ErrExpired      = errors.New("auth cookie expired")
	ErrAddrMismatch = errors.New("auth cookie peer address mismatch")
)

// Auth is the integrity-sealed authentication cookie payload. Opaque to the
// client; field order is the canonical serialization.
type Auth struct {
	Timestamp         uint64                     `json:"timestamp"`
	ClientAddr        string                     `json:"client_addr"`
	UserName          string                     `json:"user_name"`
	UserID            uuid.UUID                  `json:"user_id"`
	Target            string                     `json:"target,omitempty"`
	ProfileProperties []protocol.ProfileProperty `json:"profile_properties,omitempty"`
	Extra             map[string]string          `json:"extra,omitempty"`
}

// Session is the unsigned session cookie payload.
type Session struct {
	ID            uuid.UUID `json:"id"`
	ServerAddress string    `json:"server_address"`
	ServerPort    uint16    `json:"server_port"`
}

// Sign seals message with the process-wide secret. Wire shape is
// signature(32) || payload.
func Sign(message, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)

	out := make([]byte, 0, macLen+len(message))
	out = mac.Sum(out)
	return append(out, message...)
}

// Verify checks the seal in constant time and returns the inner payload.
func Verify(signed, secret []byte) ([]byte, error) {
	if len(signed) < macLen {
		return nil, ErrBadSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(signed[macLen:])
	if !hmac.Equal(mac.Sum(nil), signed[:macLen]) {
		return nil, ErrBadSignature
	}
	return signed[macLen:], nil
}

// SealAuth serializes and signs an auth cookie payload.
func SealAuth(payload *Auth, secret []byte) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding auth cookie: %w", err)
	}
	return Sign(raw, secret), nil
}

// OpenAuth verifies a sealed auth cookie and applies the trust checks: the
// seal must validate, the timestamp must be within expiry, and the payload
// peer must equal the observed peer. Failing cookies are discarded silently
// by the caller (full identity-provider path applies instead).
func OpenAuth(signed, secret []byte, clientAddr string, expiry time.Duration, now time.Time) (*Auth, error) {
	raw, err := Verify(signed, secret)
	if err != nil {
		return nil, err
	}

	var payload Auth
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding auth cookie: %w", err)
	}

	issued := time.Unix(int64(payload.Timestamp), 0)
	if now.Sub(issued) > expiry {
		return nil, ErrExpired
	}
	if payload.ClientAddr != clientAddr {
		return nil, ErrAddrMismatch
	}
	return &payload, nil
}

// Reseal re-issues an auth cookie after a transfer: timestamp and target are
// updated, every other field is preserved verbatim.
func Reseal(payload *Auth, target string, secret []byte, now time.Time) ([]byte, error) {
	resealed := *payload
	resealed.Timestamp = uint64(now.Unix())
	resealed.Target = target
	return SealAuth(&resealed, secret)
}

// EncodeSession serializes a session cookie. No signature: the payload holds
// nothing sensitive.
func EncodeSession(payload *Session) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding session cookie: %w", err)
	}
	return raw, nil
}

// DecodeSession parses a session cookie; any well-formed payload is accepted.
func DecodeSession(raw []byte) (*Session, error) {
	var payload Session
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding session cookie: %w", err)
	}
	return &payload, nil
}
