// Package cryptox implements the at-rest protection of the local secure
// storage: AES-256-GCM sealing and derivation of the storage key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/careercoach/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every key produced by this package (AES-256).
const KeySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Seal encrypts plaintext with AES-GCM and returns nonce||ciphertext.
// additionalData binds the sealed blob to its storage slot, so a value copied
// under another key fails to open.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open reverses Seal.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, additionalData)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveStorageKey expands a device secret into the key for one storage
// namespace. Different namespaces never share a key.
func DeriveStorageKey(deviceSecret []byte, namespace string) ([]byte, error) {
	r := hkdf.New(sha256.New, deviceSecret, nil, []byte("careercoach/secure-storage/"+namespace))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive storage key: %w", err)
	}
	return key, nil
}

// DeriveKeyFromPassphrase stretches a user passphrase with argon2id. It is
// used instead of a device key file when the host has no protected keystore.
func DeriveKeyFromPassphrase(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// LoadOrCreateDeviceKey reads the device secret at path, creating it with
// 0600 permissions on first use.
func LoadOrCreateDeviceKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("device key %s: unexpected length %d", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read device key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	key = common.GenerateRandByteArray(KeySize)
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write device key: %w", err)
	}
	return key, nil
}
