package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"precioverdadero/internal/constants"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sealKeyLen     = 32
	sealIterations = 100000
	// sealedPrefix marks values written with encryption on. Rows stored
	// before it was enabled have no prefix and are read as they are.
	sealedPrefix = "enc1:"
)

// emailSealer encrypts comment emails at rest with AES-GCM. The zero value
// is disabled and passes values through.
type emailSealer struct {
	aead cipher.AEAD
}

// sealerFromEnv returns an enabled sealer when PRECIO_ENABLE_ENCRYPTION is
// "true".
func sealerFromEnv() (*emailSealer, error) {
	if os.Getenv(constants.EnvEnableEncryption) != "true" {
		return &emailSealer{}, nil
	}
	return newEmailSealer(os.Getenv(constants.EnvEncryptionSecret))
}

func newEmailSealer(secret string) (*emailSealer, error) {
	switch {
	case secret == "":
		return nil, fmt.Errorf("%s is required when encryption is enabled", constants.EnvEncryptionSecret)
	case len(secret) < constants.MinEncryptionSecretLen:
		return nil, fmt.Errorf("encryption secret must be at least %d characters long", constants.MinEncryptionSecretLen)
	}

	key := pbkdf2.Key([]byte(secret), []byte(constants.EncryptionSalt), sealIterations, sealKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &emailSealer{aead: aead}, nil
}

func (s *emailSealer) enabled() bool {
	return s != nil && s.aead != nil
}

func (s *emailSealer) seal(email string) (string, error) {
	if email == "" || !s.enabled() {
		return email, nil
	}

	buf := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(email)+s.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	buf = s.aead.Seal(buf, buf, []byte(email), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *emailSealer) open(stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	if !s.enabled() {
		return "", fmt.Errorf("stored email is encrypted but %s is not set", constants.EnvEnableEncryption)
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed email: %w", err)
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return "", fmt.Errorf("sealed email too short")
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt email: %w", err)
	}
	return string(plain), nil
}
