package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// KeyPair holds the process-wide RSA-1024 key pair and the DER encoding of its
// public key. The DER bytes are sent in every encryption request and hashed
// into the join hash, so they are computed once and kept immutable.
type KeyPair struct {
	Private   *rsa.PrivateKey
	PublicDER []byte
}

// GenerateKeyPair generates an RSA-1024 key pair and pre-encodes the public
// key in PKIX/DER form. Generated once at process start and shared read-only.
func GenerateKeyPair() (*KeyPair, error) {
	private, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}

	return &KeyPair{Private: private, PublicDER: der}, nil
}

// Decrypt reverses the client's PKCS#1 v1.5 encryption of the shared secret
// and verify token.
func (kp *KeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	plain, err := rsa.DecryptPKCS1v15(nil, kp.Private, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("RSA decrypt: %w", err)
	}
	return plain, nil
}
