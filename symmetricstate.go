package noise

import (
	"hash"
	"io"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/hkdf"
)

// protocolName is the fixed Noise protocol identifier for this suite.
const protocolName = "Noise_XX_25519_ChaChaPoly_BLAKE2s"

// h0 is BLAKE2s(protocolName), computed once at package init rather than
// hand-transcribed, so the precomputed constant spec.md §3 calls for is
// self-verifying against its own hash input.
var h0 = blake2s.Sum256([]byte(protocolName))

func blake2sHash() hash.Hash {
	h, _ := blake2s.New256(nil)
	return h
}

// symmetricState holds the running chaining key and transcript hash that
// drive a Handshake. It is not exported: callers only ever see it through
// Handshake and the CipherStates produced by Split.
type symmetricState struct {
	ck     [32]byte
	h      [32]byte
	cipher CipherState
	hasKey bool
}

func newSymmetricState(prologue []byte) symmetricState {
	s := symmetricState{ck: h0, h: h0}
	s.mixHash(prologue)
	return s
}

func (s *symmetricState) mixKey(material [32]byte) {
	prk := hkdf.Extract(blake2sHash, material[:], s.ck[:])
	reader := hkdf.Expand(blake2sHash, prk, nil)
	var out [64]byte
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		// blake2s-256 HKDF expand never runs out of entropy for 64
		// bytes; a failure here means the stdlib/x/crypto contract
		// changed underneath us.
		panic("noise: hkdf expand failed: " + err.Error())
	}
	copy(s.ck[:], out[:32])
	var key [32]byte
	copy(key[:], out[32:])
	s.cipher = newCipherState(key)
	s.hasKey = true
}

func (s *symmetricState) mixHash(data []byte) {
	h := blake2sHash()
	h.Write(s.h[:])
	h.Write(data)
	copy(s.h[:], h.Sum(nil))
}

// encryptAndHash writes payload (encrypted, if a key is installed) into
// out and mixes the bytes actually written into the transcript hash.
func (s *symmetricState) encryptAndHash(payload, out []byte) (int, error) {
	var n int
	if s.hasKey {
		written, err := s.cipher.EncryptWithAd(s.h[:], payload, out)
		if err != nil {
			return 0, err
		}
		n = written
	} else {
		if len(out) < len(payload) {
			return 0, newErr("encrypt_and_hash", Input)
		}
		n = copy(out, payload)
	}
	s.mixHash(out[:n])
	return n, nil
}

// decryptAndHash is the inverse of encryptAndHash. The transcript hash
// is mixed with the wire-form message, not the recovered plaintext, so
// both peers agree on the transcript regardless of which direction
// decrypted it. On failure the symmetricState is left untouched.
func (s *symmetricState) decryptAndHash(message, out []byte) (int, error) {
	if s.hasKey {
		n, err := s.cipher.DecryptWithAd(s.h[:], message, out)
		if err != nil {
			return 0, err
		}
		s.mixHash(message)
		return n, nil
	}
	if len(out) < len(message) {
		return 0, newErr("decrypt_and_hash", Input)
	}
	n := copy(out, message)
	s.mixHash(message)
	return n, nil
}

// split is the terminal KDF step, turning ck into two independent
// transport CipherStates. It consumes no receiver state beyond ck, so
// the caller is free to discard the symmetricState afterward.
func (s *symmetricState) split() (CipherState, CipherState) {
	prk := hkdf.Extract(blake2sHash, nil, s.ck[:])
	reader := hkdf.Expand(blake2sHash, prk, nil)
	var out [64]byte
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		panic("noise: hkdf expand failed: " + err.Error())
	}
	var k1, k2 [32]byte
	copy(k1[:], out[:32])
	copy(k2[:], out[32:])
	return newCipherState(k1), newCipherState(k2)
}

func (s *symmetricState) zero() {
	for i := range s.ck {
		s.ck[i] = 0
	}
	for i := range s.h {
		s.h[i] = 0
	}
	s.cipher.Zero()
	s.hasKey = false
}
