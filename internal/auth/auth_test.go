package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	token, err := Sign("secret", Identity{UserID: 7, Username: "alice"})
	require.NoError(t, err)

	identity, err := NewVerifier("secret").Verify(token)
	require.NoError(t, err)
	require.Equal(t, 7, identity.UserID)
	require.Equal(t, "alice", identity.Username)
}

func TestVerifyEmptyTokenIsAnonymous(t *testing.T) {
	_, err := NewVerifier("secret").Verify("")
	require.ErrorIs(t, err, ErrAnonymous)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := Sign("secret", Identity{UserID: 7, Username: "alice"})
	require.NoError(t, err)

	_, err = NewVerifier("other").Verify(token)
	require.Error(t, err)
}

func TestVerifyMissingUserID(t *testing.T) {
	token, err := Sign("secret", Identity{Username: "ghost"})
	require.NoError(t, err)

	_, err = NewVerifier("secret").Verify(token)
	require.ErrorIs(t, err, ErrAnonymous)
}
