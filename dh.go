package noise

import "golang.org/x/crypto/curve25519"

// DHLen is the fixed size, in bytes, of an X25519 scalar or point.
const DHLen = 32

var zeroDH [DHLen]byte

// PubKey derives the X25519 public point for a secret scalar sk.
func PubKey(sk [DHLen]byte) [DHLen]byte {
	var pub [DHLen]byte
	// curve25519.X25519 with the basepoint never fails.
	out, _ := curve25519.X25519(sk[:], curve25519.Basepoint)
	copy(pub[:], out)
	return pub
}

// Dh performs an X25519 scalar multiplication and rejects the
// all-zero output, which would indicate small-subgroup / contributory
// behavior from a malicious or malformed peer key.
func Dh(sk, pk [DHLen]byte) ([DHLen]byte, error) {
	var shared [DHLen]byte
	out, err := curve25519.X25519(sk[:], pk[:])
	if err != nil {
		return shared, newErr("dh", Dh)
	}
	copy(shared[:], out)
	if shared == zeroDH {
		return shared, newErr("dh", Dh)
	}
	return shared, nil
}
