package noise

// state is the six-valued per-role handshake automaton. Progression is
// strictly linear on every successful message; the *Done states accept
// no further handshake traffic.
type state int

const (
	stateI1 state = iota
	stateI2
	stateI3
	stateIDone
	stateR1
	stateR2
	stateR3
	stateRDone
)

// overhead is the number of bytes a state's outgoing/incoming message
// adds on top of the payload, per spec.md §4.4.
func (st state) overhead() int {
	switch st {
	case stateI1, stateR1:
		return DHLen
	case stateI2, stateR2:
		return 3 * DHLen
	case stateI3, stateR3:
		return 2 * DHLen
	default:
		return 0
	}
}

func (st state) next() state {
	switch st {
	case stateI1:
		return stateI2
	case stateI2:
		return stateI3
	case stateI3:
		return stateIDone
	case stateR1:
		return stateR2
	case stateR2:
		return stateR3
	case stateR3:
		return stateRDone
	default:
		return st
	}
}

func (st state) done() bool {
	return st == stateIDone || st == stateRDone
}

// Handshake orchestrates the three-message Noise XX pattern. It owns the
// local ephemeral/static secret scalars, the remote public keys as they
// are learned, and the running SymmetricState. A Handshake is not safe
// for concurrent use.
type Handshake struct {
	e, s   [DHLen]byte
	re, rs [DHLen]byte
	st     state
	sym    symmetricState
}

// Init constructs a Handshake as the initiator, sending message 1 first.
// e and s are the local ephemeral and static secret scalars; prologue is
// mixed into the transcript hash before any messages.
func Init(e, s [DHLen]byte, prologue []byte) *Handshake {
	return &Handshake{
		e:   e,
		s:   s,
		st:  stateI1,
		sym: newSymmetricState(prologue),
	}
}

// Resp constructs a Handshake as the responder, expecting message 1 first.
func Resp(e, s [DHLen]byte, prologue []byte) *Handshake {
	return &Handshake{
		e:   e,
		s:   s,
		st:  stateR1,
		sym: newSymmetricState(prologue),
	}
}

// Zero overwrites all secret material held by the Handshake: the local
// scalars, the learned remote public keys, and the symmetric state.
func (h *Handshake) Zero() {
	for i := range h.e {
		h.e[i] = 0
	}
	for i := range h.s {
		h.s[i] = 0
	}
	for i := range h.re {
		h.re[i] = 0
	}
	for i := range h.rs {
		h.rs[i] = 0
	}
	h.sym.zero()
}

// WriteMessage appends the next handshake message to out, encrypting
// payload as the message's trailing application data. It is valid only
// in the states where it is this role's turn to write (I1, R2, I3); in
// the states where it is the peer's turn it returns NotMyTurn, and in a
// *Done state it returns NeedUpgrade. On any error the Handshake's
// SymmetricState is left exactly as it was before the call.
func (h *Handshake) WriteMessage(payload, out []byte) (int, error) {
	if h.st.done() {
		return 0, newErr("write_message", NeedUpgrade)
	}
	if !h.canWrite() {
		return 0, newErr("write_message", NotMyTurn)
	}
	if len(out) < h.st.overhead()+len(payload) {
		return 0, newErr("write_message", Input)
	}

	snapshot := h.sym
	n, err := h.writeMessage(payload, out)
	if err != nil {
		h.sym = snapshot
		return 0, err
	}
	h.st = h.st.next()
	return n, nil
}

// ReadMessage is the inverse of WriteMessage: it parses message and
// writes the recovered payload into payloadOut. Same turn enforcement
// and atomicity-on-failure guarantees as WriteMessage.
func (h *Handshake) ReadMessage(message, payloadOut []byte) (int, error) {
	if h.st.done() {
		return 0, newErr("read_message", NeedUpgrade)
	}
	if h.canWrite() {
		return 0, newErr("read_message", NotMyTurn)
	}
	if len(message) < h.st.overhead() {
		return 0, newErr("read_message", Input)
	}
	if len(payloadOut) < len(message)-h.st.overhead() {
		return 0, newErr("read_message", Input)
	}

	snapshot := h.sym
	n, err := h.readMessage(message, payloadOut)
	if err != nil {
		h.sym = snapshot
		return 0, err
	}
	h.st = h.st.next()
	return n, nil
}

// canWrite reports whether this role is due to write in the current
// state: I1, R2, I3 write; R1, I2, R3 read.
func (h *Handshake) canWrite() bool {
	switch h.st {
	case stateI1, stateR2, stateI3:
		return true
	default:
		return false
	}
}

func (h *Handshake) writeMessage(payload, out []byte) (int, error) {
	switch h.st {
	case stateI1:
		// -> e
		epub := PubKey(h.e)
		n1, err := h.sym.encryptAndHash(epub[:], out)
		if err != nil {
			return 0, err
		}
		n2, err := h.sym.encryptAndHash(payload, out[n1:])
		if err != nil {
			return 0, err
		}
		return n1 + n2, nil

	case stateR2:
		// <- e, ee, s, es
		epub := PubKey(h.e)
		n1, err := h.sym.encryptAndHash(epub[:], out)
		if err != nil {
			return 0, err
		}
		dh, err := Dh(h.e, h.re)
		if err != nil {
			return 0, err
		}
		h.sym.mixKey(dh)

		spub := PubKey(h.s)
		n2, err := h.sym.encryptAndHash(spub[:], out[n1:])
		if err != nil {
			return 0, err
		}
		dh, err = Dh(h.s, h.re)
		if err != nil {
			return 0, err
		}
		h.sym.mixKey(dh)

		n3, err := h.sym.encryptAndHash(payload, out[n1+n2:])
		if err != nil {
			return 0, err
		}
		return n1 + n2 + n3, nil

	case stateI3:
		// -> s, se
		spub := PubKey(h.s)
		n1, err := h.sym.encryptAndHash(spub[:], out)
		if err != nil {
			return 0, err
		}
		dh, err := Dh(h.s, h.re)
		if err != nil {
			return 0, err
		}
		h.sym.mixKey(dh)

		n2, err := h.sym.encryptAndHash(payload, out[n1:])
		if err != nil {
			return 0, err
		}
		return n1 + n2, nil

	default:
		return 0, newErr("write_message", NotMyTurn)
	}
}

func (h *Handshake) readMessage(message, payloadOut []byte) (int, error) {
	switch h.st {
	case stateR1:
		// -> e
		var re [DHLen]byte
		if _, err := h.sym.decryptAndHash(message[:DHLen], re[:]); err != nil {
			return 0, err
		}
		h.re = re

		n2, err := h.sym.decryptAndHash(message[DHLen:], payloadOut)
		if err != nil {
			return 0, err
		}
		return n2, nil

	case stateI2:
		// <- e, ee, s, es
		eEnd := DHLen
		sEnd := eEnd + DHLen + TagLen

		var re [DHLen]byte
		if _, err := h.sym.decryptAndHash(message[:eEnd], re[:]); err != nil {
			return 0, err
		}
		h.re = re

		dh, err := Dh(h.e, h.re)
		if err != nil {
			return 0, err
		}
		h.sym.mixKey(dh)

		var rs [DHLen]byte
		if _, err := h.sym.decryptAndHash(message[eEnd:sEnd], rs[:]); err != nil {
			return 0, err
		}
		h.rs = rs

		dh, err = Dh(h.e, h.rs)
		if err != nil {
			return 0, err
		}
		h.sym.mixKey(dh)

		n, err := h.sym.decryptAndHash(message[sEnd:], payloadOut)
		if err != nil {
			return 0, err
		}
		return n, nil

	case stateR3:
		// -> s, se
		sEnd := DHLen + TagLen

		var rs [DHLen]byte
		if _, err := h.sym.decryptAndHash(message[:sEnd], rs[:]); err != nil {
			return 0, err
		}
		h.rs = rs

		dh, err := Dh(h.e, h.rs)
		if err != nil {
			return 0, err
		}
		h.sym.mixKey(dh)

		n, err := h.sym.decryptAndHash(message[sEnd:], payloadOut)
		if err != nil {
			return 0, err
		}
		return n, nil

	default:
		return 0, newErr("read_message", NotMyTurn)
	}
}

// Upgrade completes the handshake, valid only once the local role has
// processed all three messages (IDone/RDone). It consumes the
// SymmetricState via Split and wires the two resulting CipherStates so
// that the initiator's send cipher is the responder's receive cipher.
func (h *Handshake) Upgrade() (*Transport, error) {
	if !h.st.done() {
		// Premature Upgrade leaves the Handshake untouched so the
		// caller can keep driving WriteMessage/ReadMessage normally.
		return nil, newErr("upgrade", NotMyTurn)
	}
	var send, recv CipherState
	if h.st == stateIDone {
		send, recv = h.sym.split()
	} else {
		recv, send = h.sym.split()
	}
	rs := h.rs
	h.Zero()
	return &Transport{rs: rs, send: send, recv: recv}, nil
}
