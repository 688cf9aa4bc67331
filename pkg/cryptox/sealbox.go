package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// Sealbox provides authenticated symmetric encryption (AES-256-GCM) for
// payloads persisted at rest, such as in-flight authorization transactions.
// A Sealbox is constructed once at startup from key material and passed to
// the stores that need it; there is no package-level key state.
type Sealbox struct {
	aead cipher.AEAD
}

// NewSealbox derives a 32-byte AES-256 key from the given key material via
// SHA-256 and returns a ready-to-use Sealbox.
func NewSealbox(keyMaterial []byte) (*Sealbox, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty key material")
	}

	key := sha256.Sum256(keyMaterial)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealbox{aead: aead}, nil
}

// LoadSealbox sources key material in order of preference: the file at path
// (if non-empty), then the env variable named by envKey. If neither is set
// and allowEphemeral is true a random key is generated; sealed payloads then
// do not survive a restart, which is acceptable for development only.
func LoadSealbox(path, envKey string, allowEphemeral bool) (*Sealbox, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sealbox key file: %w", err)
		}
		return NewSealbox(data)
	}

	if v := os.Getenv(envKey); v != "" {
		return NewSealbox([]byte(v))
	}

	if !allowEphemeral {
		return nil, errors.New("cryptox: no sealbox key configured")
	}

	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral sealbox key: %w", err)
	}
	return NewSealbox(material)
}

// Seal encrypts and authenticates plaintext. The output layout is
// [12-byte nonce][ciphertext][16-byte auth tag], nonce randomized per call.
func (s *Sealbox) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal, verifying the authentication tag.
func (s *Sealbox) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("cryptox: sealed payload too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
