package crypto

import "crypto/cipher"

// cfb8 is AES in 8-bit cipher-feedback mode. The stdlib CFB implementation
// feeds back whole blocks; the game protocol shifts the register one byte at
// a time, so the mode is implemented here directly.
type cfb8 struct {
	block   cipher.Block
	sr      []byte // shift register, one block wide
	out     []byte
	decrypt bool
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) *cfb8 {
	bs := block.BlockSize()
	x := &cfb8{
		block:   block,
		sr:      make([]byte, bs),
		out:     make([]byte, bs),
		decrypt: decrypt,
	}
	copy(x.sr, iv)
	return x
}

// XORKeyStream implements cipher.Stream. dst and src may overlap exactly.
func (x *cfb8) XORKeyStream(dst, src []byte) {
	for i := range src {
		x.block.Encrypt(x.out, x.sr)
		c := src[i] ^ x.out[0]

		// feedback is the ciphertext byte in both directions
		fb := c
		if x.decrypt {
			fb = src[i]
		}
		copy(x.sr, x.sr[1:])
		x.sr[len(x.sr)-1] = fb

		dst[i] = c
	}
}
