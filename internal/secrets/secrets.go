// Package secrets provides the symmetric payload codec and key material
// helpers used across the service: AES-256-GCM encryption of opaque JSON
// payloads, SHA-256 digests for one-way key verification, and random key
// generation.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// KeySize is the required encryption key length in bytes (AES-256).
const KeySize = 32

// Codec encrypts and decrypts opaque string payloads with AES-256-GCM.
// Every Encrypt call uses a fresh random nonce; the nonce is prepended to
// the ciphertext and the whole value is hex-encoded.
type Codec struct {
	key []byte
}

// NewCodec creates a codec from a raw key. The key must be exactly
// KeySize bytes; there is no truncation or hashing fallback for
// misconfigured keys.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Codec{key: k}, nil
}

// Encrypt encrypts plaintext and returns hex-encoded nonce+ciphertext.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	// Key size is validated in NewCodec
	block, _ := aes.NewCipher(c.key) //nolint:errcheck
	gcm, _ := cipher.NewGCM(block)   //nolint:errcheck

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It returns ErrDecryption if the input is
// malformed, the authentication tag does not verify, or the key is wrong.
func (c *Codec) Decrypt(encrypted string) (string, error) {
	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecryption
	}

	block, _ := aes.NewCipher(c.key) //nolint:errcheck
	gcm, _ := cipher.NewGCM(block)   //nolint:errcheck

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrDecryption
	}

	nonce := raw[:nonceSize]
	actual := raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, actual, nil)
	if err != nil {
		return "", ErrDecryption
	}

	return string(plaintext), nil
}

// GenerateKey returns a hex-encoded random key of n bytes.
// Used for raw API keys (n=32 gives a 64-char key).
func GenerateKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Digest returns the SHA-256 hex digest of value. It is used for equality
// checks (key verification) without storing the value recoverably.
func Digest(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

// Obfuscate shortens a key for display: first and last four characters
// with an ellipsis in between. Keys too short to obfuscate are returned
// unchanged.
func Obfuscate(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return key
	}
	return key[:visible] + "..." + key[len(key)-visible:]
}
