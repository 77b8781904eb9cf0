package noise

import "github.com/stp-noise/noisexx/internal/replay"

// Transport is the post-handshake object: two independent CipherStates,
// one per direction, plus the peer's authenticated static public key.
// Produced by Handshake.Upgrade. A Transport is not safe for concurrent
// mutation; callers needing parallel send and receive should Split it
// first into its two one-way halves, which share no mutable state.
type Transport struct {
	rs     [DHLen]byte
	send   CipherState
	recv   CipherState
	window *replay.Window
}

// RemoteKey returns the peer's authenticated static public key.
func (t *Transport) RemoteKey() [DHLen]byte { return t.rs }

// SendNonce reports the current send-side counter.
func (t *Transport) SendNonce() uint64 { return t.send.Nonce() }

// RecvNonce reports the current receive-side counter.
func (t *Transport) RecvNonce() uint64 { return t.recv.Nonce() }

// SetReceiveNonce resynchronizes the receive counter. It is forward-only:
// a value lower than the current counter is rejected with Input rather
// than silently rewinding, since rewinding would reopen a replay window
// the caller has already closed.
func (t *Transport) SetReceiveNonce(n uint64) error {
	if n < t.recv.Nonce() {
		return newErr("set_receive_nonce", Input)
	}
	t.recv.SetNonce(n)
	return nil
}

// WithReplayWindow attaches an optional sliding-window duplicate filter
// to the receive side. It is opt-in: without it, ReadMessage's only
// duplicate protection is the AEAD's own nonce-bound tag (each successful
// read advances the receive counter, so a resent ciphertext is opened
// under the next counter and fails with Decrypt). Passing nil detaches any
// previously attached window.
func (t *Transport) WithReplayWindow(w *replay.Window) {
	t.window = w
}

// WriteMessage encrypts payload with empty associated data on the send
// cipher, writing ciphertext||tag into out.
func (t *Transport) WriteMessage(payload, out []byte) (int, error) {
	return t.send.EncryptWithAd(nil, payload, out)
}

// ReadMessage decrypts message on the receive cipher, writing the
// recovered plaintext into out. If a replay window is attached, the
// message's pre-decrypt counter is checked and, on success, accepted
// into the window.
func (t *Transport) ReadMessage(message, out []byte) (int, error) {
	if t.window != nil {
		seq := t.recv.Nonce()
		if err := t.window.Check(seq); err != nil {
			return 0, newErr("read_message", Decrypt)
		}
		n, err := t.recv.DecryptWithAd(nil, message, out)
		if err != nil {
			return 0, err
		}
		t.window.Accept(seq)
		return n, nil
	}
	return t.recv.DecryptWithAd(nil, message, out)
}

// Zero overwrites both CipherStates' key material.
func (t *Transport) Zero() {
	t.send.Zero()
	t.recv.Zero()
	for i := range t.rs {
		t.rs[i] = 0
	}
}

// Split consumes the Transport and yields two one-way endpoints: a
// receiver owning the recv CipherState and a sender owning the send
// CipherState. Each carries its own copy of the peer's static key and
// may be operated on from a different goroutine with no shared mutable
// state between them.
func (t *Transport) Split() (*TransportRecv, *TransportSend) {
	return &TransportRecv{rs: t.rs, recv: t.recv, window: t.window},
		&TransportSend{rs: t.rs, send: t.send}
}

// TransportRecv is the receive-only half produced by Transport.Split.
type TransportRecv struct {
	rs     [DHLen]byte
	recv   CipherState
	window *replay.Window
}

// RemoteKey returns the peer's authenticated static public key.
func (r *TransportRecv) RemoteKey() [DHLen]byte { return r.rs }

// RecvNonce reports the current receive-side counter.
func (r *TransportRecv) RecvNonce() uint64 { return r.recv.Nonce() }

// SetReceiveNonce resynchronizes the receive counter; see Transport.SetReceiveNonce.
func (r *TransportRecv) SetReceiveNonce(n uint64) error {
	if n < r.recv.Nonce() {
		return newErr("set_receive_nonce", Input)
	}
	r.recv.SetNonce(n)
	return nil
}

// WithReplayWindow attaches or detaches an optional duplicate filter.
func (r *TransportRecv) WithReplayWindow(w *replay.Window) {
	r.window = w
}

// ReadMessage decrypts message, writing the recovered plaintext into out.
func (r *TransportRecv) ReadMessage(message, out []byte) (int, error) {
	if r.window != nil {
		seq := r.recv.Nonce()
		if err := r.window.Check(seq); err != nil {
			return 0, newErr("read_message", Decrypt)
		}
		n, err := r.recv.DecryptWithAd(nil, message, out)
		if err != nil {
			return 0, err
		}
		r.window.Accept(seq)
		return n, nil
	}
	return r.recv.DecryptWithAd(nil, message, out)
}

// Zero overwrites the receive CipherState's key material.
func (r *TransportRecv) Zero() {
	r.recv.Zero()
	for i := range r.rs {
		r.rs[i] = 0
	}
}

// TransportSend is the send-only half produced by Transport.Split.
type TransportSend struct {
	rs   [DHLen]byte
	send CipherState
}

// RemoteKey returns the peer's authenticated static public key.
func (s *TransportSend) RemoteKey() [DHLen]byte { return s.rs }

// SendNonce reports the current send-side counter.
func (s *TransportSend) SendNonce() uint64 { return s.send.Nonce() }

// WriteMessage encrypts payload, writing ciphertext||tag into out.
func (s *TransportSend) WriteMessage(payload, out []byte) (int, error) {
	return s.send.EncryptWithAd(nil, payload, out)
}

// Zero overwrites the send CipherState's key material.
func (s *TransportSend) Zero() {
	s.send.Zero()
	for i := range s.rs {
		s.rs[i] = 0
	}
}
