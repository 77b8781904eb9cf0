// Package noise implements the Noise_XX_25519_ChaChaPoly_BLAKE2s
// handshake and the post-handshake transport cipher it produces.
//
// The package turns a pair of long-term static keys and a freshly
// generated ephemeral key into an authenticated, mutually-known pair of
// symmetric cipher streams suitable for application framing. It performs
// no I/O of its own: Handshake and Transport operate purely on
// caller-supplied byte slices.
//
// A typical session looks like:
//
//	hs := noise.Init(e, s, prologue)
//	n, err := hs.WriteMessage(nil, buf)
//	// ... send buf[:n] to the peer, receive their reply into buf ...
//	n, err = hs.ReadMessage(buf[:n], payload)
//	// repeat for the remaining two messages, then:
//	t, err := hs.Upgrade()
//	n, err = t.WriteMessage(plaintext, buf)
package noise
