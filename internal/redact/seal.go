package redact

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// Seal encrypts encoded payload bytes for the ENCRYPTED_DEBUG escalation mode:
// it persists raw payload data, gated behind authenticated encryption
// instead of plaintext storage, keyed to a single operator recipient
// rather than a multi-recipient bundle, since a debug artifact has one
// intended reader.
func Seal(plaintext []byte, recipientKey string) ([]byte, error) {
	recipient, err := age.ParseX25519Recipient(recipientKey)
	if err != nil {
		return nil, fmt.Errorf("redact: parsing recipient key: %w", err)
	}

	var out bytes.Buffer
	w, err := age.Encrypt(&out, recipient)
	if err != nil {
		return nil, fmt.Errorf("redact: creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("redact: writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("redact: finalizing encryption: %w", err)
	}
	return out.Bytes(), nil
}

// Unseal reverses Seal using the operator's private key, in
// AGE-SECRET-KEY-1... format.
func Unseal(ciphertext []byte, privateKey string) ([]byte, error) {
	identity, err := age.ParseX25519Identity(privateKey)
	if err != nil {
		return nil, fmt.Errorf("redact: parsing private key: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("redact: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("redact: reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}

// GenerateRecipientKeypair creates a new age x25519 keypair for
// ENCRYPTED_DEBUG mode, returning the private key (to be stored by the
// operator, never by Forkline) and the public key (safe to embed in
// escalation-mode configuration).
func GenerateRecipientKeypair() (privateKey, publicKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("redact: generating age keypair: %w", err)
	}
	return identity.String(), identity.Recipient().String(), nil
}
