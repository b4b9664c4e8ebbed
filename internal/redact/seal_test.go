package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealUnseal_RoundTrip(t *testing.T) {
	priv, pub, err := GenerateRecipientKeypair()
	require.NoError(t, err)

	plaintext := []byte(`{"api_key":"sk-secret123","url":"https://x"}`)
	ciphertext, err := Seal(plaintext, pub)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	got, err := Unseal(ciphertext, priv)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestUnseal_WrongKeyFails(t *testing.T) {
	_, pub, err := GenerateRecipientKeypair()
	require.NoError(t, err)
	otherPriv, _, err := GenerateRecipientKeypair()
	require.NoError(t, err)

	ciphertext, err := Seal([]byte("secret"), pub)
	require.NoError(t, err)

	_, err = Unseal(ciphertext, otherPriv)
	require.Error(t, err)
}

func TestSeal_RejectsMalformedRecipientKey(t *testing.T) {
	_, err := Seal([]byte("x"), "not-a-key")
	require.Error(t, err)
}
