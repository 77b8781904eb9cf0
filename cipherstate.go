package noise

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"
)

// TagLen is the size, in bytes, of the Poly1305 authentication tag
// appended to every ChaCha20-Poly1305 ciphertext.
const TagLen = 16

// nonceLen is the wire size of the Noise nonce: four zero bytes
// followed by an 8-byte little-endian counter.
const nonceLen = chacha20poly1305.NonceSize

// CipherState is a single keyed AEAD stream with its own monotonic
// nonce counter. It is produced by symmetricState.mixKey or
// symmetricState.split and is not meant to be constructed directly.
type CipherState struct {
	k [32]byte
	n uint64
}

func newCipherState(k [32]byte) CipherState {
	return CipherState{k: k}
}

// Nonce reports the current counter value.
func (c *CipherState) Nonce() uint64 { return c.n }

// SetNonce unconditionally overwrites the counter. Used only by callers
// that want to resynchronize a receive stream.
func (c *CipherState) SetNonce(n uint64) { c.n = n }

func (c *CipherState) nonceBytes() [nonceLen]byte {
	var nonce [nonceLen]byte
	binary.LittleEndian.PutUint64(nonce[4:], c.n)
	return nonce
}

// EncryptWithAd encrypts plaintext under the stream key with associated
// data ad, writing ciphertext||tag (len(plaintext)+TagLen bytes) into out
// and returning the number of bytes written. The nonce counter advances
// by one only on success.
func (c *CipherState) EncryptWithAd(ad, plaintext, out []byte) (int, error) {
	need := len(plaintext) + TagLen
	if len(out) < need {
		return 0, newErr("encrypt", Input)
	}
	aead, err := chacha20poly1305.New(c.k[:])
	if err != nil {
		// Only possible if k were the wrong length, which never happens
		// for a [32]byte key.
		return 0, newErr("encrypt", Input)
	}
	nonce := c.nonceBytes()
	sealed := aead.Seal(out[:0], nonce[:], plaintext, ad)
	c.n++
	return len(sealed), nil
}

// DecryptWithAd is the inverse of EncryptWithAd. On a Decrypt failure the
// nonce counter does NOT advance; on success it advances by one.
func (c *CipherState) DecryptWithAd(ad, ciphertext, out []byte) (int, error) {
	if len(ciphertext) < TagLen {
		return 0, newErr("decrypt", Input)
	}
	need := len(ciphertext) - TagLen
	if len(out) < need {
		return 0, newErr("decrypt", Input)
	}
	aead, err := chacha20poly1305.New(c.k[:])
	if err != nil {
		return 0, newErr("decrypt", Input)
	}
	nonce := c.nonceBytes()
	plain, err := aead.Open(out[:0], nonce[:], ciphertext, ad)
	if err != nil {
		return 0, newErr("decrypt", Decrypt)
	}
	c.n++
	return len(plain), nil
}

// Zero overwrites the key and resets the counter so stale key material
// does not linger in memory after a Handshake or Transport is discarded.
func (c *CipherState) Zero() {
	for i := range c.k {
		c.k[i] = 0
	}
	c.n = 0
}
