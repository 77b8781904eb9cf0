package noise

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stp-noise/noisexx/internal/replay"
)

func handshakeTransports(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	init, resp := runHandshake(t, []byte("a"), []byte("b"), []byte("c"))
	initT, err := init.Upgrade()
	if err != nil {
		t.Fatalf("initiator upgrade: %v", err)
	}
	respT, err := resp.Upgrade()
	if err != nil {
		t.Fatalf("responder upgrade: %v", err)
	}
	return initT, respT
}

// Invariant 5: nonce monotonicity — successful encrypt/decrypt advances
// the counter by exactly one; failed decrypt leaves it unchanged.
func TestNonceMonotonicity(t *testing.T) {
	initT, respT := handshakeTransports(t)

	buf := make([]byte, 64)
	out := make([]byte, 5)

	if initT.SendNonce() != 0 {
		t.Fatalf("expected initial send nonce 0")
	}
	n, err := initT.WriteMessage([]byte("hello"), buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if initT.SendNonce() != 1 {
		t.Fatalf("send nonce did not advance: %d", initT.SendNonce())
	}

	if respT.RecvNonce() != 0 {
		t.Fatalf("expected initial recv nonce 0")
	}
	if _, err := respT.ReadMessage(buf[:n], out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if respT.RecvNonce() != 1 {
		t.Fatalf("recv nonce did not advance: %d", respT.RecvNonce())
	}

	n2, err := initT.WriteMessage([]byte("world"), buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	bad := append([]byte(nil), buf[:n2]...)
	bad[len(bad)-1] ^= 0xff
	if _, err := respT.ReadMessage(bad, out); err == nil {
		t.Fatalf("expected decrypt failure on tampered ciphertext")
	}
	if respT.RecvNonce() != 1 {
		t.Fatalf("recv nonce advanced on failed decrypt: %d", respT.RecvNonce())
	}
}

// S6. Split and parallel round trip.
func TestSplitParallel(t *testing.T) {
	initT, respT := handshakeTransports(t)

	initRecv, initSend := initT.Split()
	respRecv, respSend := respT.Split()

	const count = 1000
	var wg sync.WaitGroup
	wg.Add(2)

	errs := make(chan error, 2)

	go func() {
		defer wg.Done()
		buf := make([]byte, 64)
		for i := 0; i < count; i++ {
			msg := []byte{byte(i), byte(i >> 8)}
			n, err := initSend.WriteMessage(msg, buf)
			if err != nil {
				errs <- err
				return
			}
			out := make([]byte, len(msg))
			if _, err := respRecv.ReadMessage(buf[:n], out); err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(out, msg) {
				errs <- errFromMismatch(i)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, 64)
		for i := 0; i < count; i++ {
			msg := []byte{byte(i), byte(i >> 8), 0xAA}
			n, err := respSend.WriteMessage(msg, buf)
			if err != nil {
				errs <- err
				return
			}
			out := make([]byte, len(msg))
			if _, err := initRecv.ReadMessage(buf[:n], out); err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(out, msg) {
				errs <- errFromMismatch(i)
				return
			}
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("split parallel round trip failed: %v", err)
	}
}

func errFromMismatch(i int) error {
	return &Error{Kind: Decrypt, Op: "split_parallel_mismatch"}
}

func TestSetReceiveNonceForwardOnly(t *testing.T) {
	initT, respT := handshakeTransports(t)
	_ = initT

	if err := respT.SetReceiveNonce(10); err != nil {
		t.Fatalf("forward resync: %v", err)
	}
	if respT.RecvNonce() != 10 {
		t.Fatalf("recv nonce not updated: %d", respT.RecvNonce())
	}
	if err := respT.SetReceiveNonce(3); err == nil {
		t.Fatalf("expected rejection of backward resync")
	}
	if respT.RecvNonce() != 10 {
		t.Fatalf("recv nonce mutated by rejected backward resync: %d", respT.RecvNonce())
	}
}

func TestReplayWindowRejectsDuplicate(t *testing.T) {
	initT, respT := handshakeTransports(t)
	respT.WithReplayWindow(replay.New(64))

	buf := make([]byte, 64)
	out := make([]byte, 5)

	n, err := initT.WriteMessage([]byte("hello"), buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := append([]byte(nil), buf[:n]...)

	if _, err := respT.ReadMessage(msg, out); err != nil {
		t.Fatalf("first read: %v", err)
	}

	// Resync the receive counter backward to replay the same message;
	// since counters are forward-only via SetReceiveNonce, simulate a
	// duplicate delivery by checking the window directly at the
	// already-consumed sequence number.
	if err := respT.window.Check(0); err == nil {
		t.Fatalf("expected window to reject an already-accepted sequence number")
	}
}
