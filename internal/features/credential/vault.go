package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	ivSize  = 16
	tagSize = 16
	keySize = 32
)

var (
	ErrMalformedCiphertext  = errors.New("malformed ciphertext: expected <iv>:<tag>:<cipher>")
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
	ErrKeyTooShort          = errors.New("encryption secret must be at least 32 bytes")
)

// Vault encrypts and decrypts POS credentials at rest using AES-256-GCM.
// Ciphertext is serialized as three colon-delimited hex segments:
// a random 16-byte IV, the 16-byte auth tag, and the cipher bytes.
type Vault struct {
	key []byte
}

// NewVault derives the AES key from the first 32 bytes of the configured secret.
func NewVault(secret string) (*Vault, error) {
	if len(secret) < keySize {
		return nil, ErrKeyTooShort
	}
	return &Vault{key: []byte(secret)[:keySize]}, nil
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	// Seal appends the auth tag after the cipher bytes
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	cipherBytes := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(cipherBytes),
	), nil
}

func (v *Vault) Decrypt(ciphertext string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 3 {
		return "", ErrMalformedCiphertext
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", ErrMalformedCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrMalformedCiphertext
	}
	cipherBytes, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, iv, append(cipherBytes, tag...), nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}

	return string(plaintext), nil
}
