package crypto

import (
	"crypto/sha1"
	"math/big"
)

// JoinHash computes the hash that links a client's identity-provider call to
// this server's ephemeral key: SHA-1 over server_id || shared_secret ||
// public_key_der, formatted as a signed big-endian integer in base 16.
// Digests with the high bit set get a leading '-' and no zero padding.
func JoinHash(serverID string, sharedSecret, publicKeyDER []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKeyDER)
	sum := h.Sum(nil)

	negative := sum[0]&0x80 != 0
	if negative {
		// two's complement negation to recover the magnitude
		carry := true
		for i := len(sum) - 1; i >= 0; i-- {
			sum[i] = ^sum[i]
			if carry {
				sum[i]++
				carry = sum[i] == 0
			}
		}
	}

	hex := new(big.Int).SetBytes(sum).Text(16)
	if negative {
		return "-" + hex
	}
	return hex
}
