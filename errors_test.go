package noise

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	cases := []struct {
		kind Kind
		want string
	}{
		{Input, "input"},
		{Decrypt, "decrypt"},
		{Dh, "dh"},
		{NotMyTurn, "not my turn"},
		{NeedUpgrade, "need upgrade"},
		{Kind(99), "Kind(99)"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.kind.String(), "Kind(%d)", int(tc.kind))
	}
}

func TestErrorIsIgnoresOp(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"input", newErr("write_message", Input), ErrInput},
		{"decrypt", newErr("read_message", Decrypt), ErrDecrypt},
		{"dh", newErr("dh", Dh), ErrDh},
		{"not_my_turn", newErr("write_message", NotMyTurn), ErrNotMyTurn},
		{"need_upgrade", newErr("write_message", NeedUpgrade), ErrNeedUpgrade},
	}
	for _, tc := range cases {
		require.True(t, errors.Is(tc.err, tc.sentinel), "%s: errors.Is should match by Kind regardless of Op", tc.name)
	}
	require.False(t, errors.Is(newErr("op", Input), ErrDecrypt), "distinct kinds must not match")
}

func TestErrorMessageFormat(t *testing.T) {
	withOp := newErr("encrypt_and_hash", Input)
	require.Equal(t, "noise: encrypt_and_hash: input", withOp.Error())

	bare := &Error{Kind: Decrypt}
	require.Equal(t, "noise: decrypt", bare.Error())
}
