package crypto

import (
	"crypto/aes"
	"fmt"
	"io"
)

// SharedSecretLen is the AES-128 key size; the protocol reuses the same 16
// bytes as the initial value.
const SharedSecretLen = 16

// CipherStream wraps a connection's reader and writer. Until encryption is
// enabled, bytes pass through untouched; afterwards every byte in both
// directions runs through an independent AES-128-CFB8 state.
type CipherStream struct {
	r io.Reader
	w io.Writer

	dec *cfb8
	enc *cfb8
}

func NewCipherStream(r io.Reader, w io.Writer) *CipherStream {
	return &CipherStream{r: r, w: w}
}

// EnableEncryption installs the cipher pair. Called exactly once per
// connection, right after the encryption response has been verified.
func (s *CipherStream) EnableEncryption(sharedSecret []byte) error {
	if len(sharedSecret) != SharedSecretLen {
		return fmt.Errorf("shared secret must be %d bytes, got %d", SharedSecretLen, len(sharedSecret))
	}
	if s.enc != nil {
		return fmt.Errorf("encryption already enabled")
	}

	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return fmt.Errorf("creating AES cipher: %w", err)
	}

	s.enc = newCFB8(block, sharedSecret, false)
	s.dec = newCFB8(block, sharedSecret, true)
	return nil
}

// Encrypted reports whether the cipher pair has been installed.
func (s *CipherStream) Encrypted() bool {
	return s.enc != nil
}

func (s *CipherStream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 && s.dec != nil {
		s.dec.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

func (s *CipherStream) Write(p []byte) (int, error) {
	if s.enc == nil {
		return s.w.Write(p)
	}
	buf := make([]byte, len(p))
	s.enc.XORKeyStream(buf, p)
	return s.w.Write(buf)
}
