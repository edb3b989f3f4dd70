package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength    = 32
	ivLength      = 16
	tagLength     = 16
	keyLength     = 32
	kdfIterations = 100_000

	headerLength = saltLength + ivLength + tagLength
)

// FieldCipher encrypts individual values with AES-256-GCM under a key derived from the
// master secret and a per-value salt.
//
// Blob layout before base64: salt(32) || iv(16) || tag(16) || ciphertext.
type FieldCipher struct {
	masterKey []byte
}

// NewFieldCipher creates a FieldCipher. An empty key is accepted so that a misconfigured
// deployment fails on first use with ErrMissingKey rather than at an arbitrary call site.
func NewFieldCipher(masterKey string) *FieldCipher {
	return &FieldCipher{masterKey: []byte(masterKey)}
}

// Encrypt seals plaintext and returns the base64 encoded blob.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	if len(c.masterKey) == 0 {
		return "", ErrMissingKey
	}

	buf := make([]byte, saltLength+ivLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt and iv: %w", err)
	}
	salt, iv := buf[:saltLength], buf[saltLength:]

	gcm, err := c.newGCM(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the stored layout puts it first.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	blob := make([]byte, 0, headerLength+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed, truncated or tampered blob
// yields ErrAuthenticationFailed.
func (c *FieldCipher) Decrypt(encoded string) (string, error) {
	if len(c.masterKey) == 0 {
		return "", ErrMissingKey
	}

	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(blob) < headerLength {
		return "", ErrAuthenticationFailed
	}

	salt := blob[:saltLength]
	iv := blob[saltLength : saltLength+ivLength]
	tag := blob[saltLength+ivLength : headerLength]
	ciphertext := blob[headerLength:]

	gcm, err := c.newGCM(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}

	return string(plaintext), nil
}

func (c *FieldCipher) newGCM(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.masterKey, salt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return gcm, nil
}
