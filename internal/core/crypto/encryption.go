// Package crypto protects the deployer's signing key at rest.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// Signing keys are stored as base64 AES-256-GCM ciphertext of the hex key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the encryption key is too short.
	ErrKeyTooShort = errors.New("encryption key must be at least 32 bytes")

	// ErrInvalidCiphertext is returned when the ciphertext cannot hold a nonce.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned on a wrong key or corrupted data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrInvalidSignerKey is returned when a signing key cannot be parsed.
	ErrInvalidSignerKey = errors.New("invalid signer private key")

	// ErrPassphraseRequired is returned when an encrypted key has no passphrase.
	ErrPassphraseRequired = errors.New("encryption passphrase is required")
)

// =============================================================================
// Key Derivation
// =============================================================================

// DeriveKey derives a 32-byte AES-256 key from a passphrase using SHA-256.
// Same input always produces the same key.
func DeriveKey(passphrase string) []byte {
	hash := sha256.Sum256([]byte(passphrase))
	return hash[:]
}

// =============================================================================
// AES-256-GCM Encryption
// =============================================================================

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with AES-256-GCM.
//
// The ciphertext format is: nonce (12 bytes) || encrypted data || auth tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptToBase64 encrypts plaintext and returns base64-encoded ciphertext.
func EncryptToBase64(plaintext, key []byte) (string, error) {
	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptFromBase64 decrypts base64-encoded ciphertext.
func DecryptFromBase64(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return Decrypt(ciphertext, key)
}

// =============================================================================
// Signer Key Utilities
// =============================================================================

// ParseSignerKey parses a hex secp256k1 private key, with or without 0x.
func ParseSignerKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignerKey, err)
	}
	return key, nil
}

// EncryptSignerKey seals a private key for storage in a key file.
func EncryptSignerKey(key *ecdsa.PrivateKey, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrPassphraseRequired
	}
	hexKey := fmt.Sprintf("%x", ethcrypto.FromECDSA(key))
	return EncryptToBase64([]byte(hexKey), DeriveKey(passphrase))
}

// DecryptSignerKey opens a key file's contents produced by EncryptSignerKey.
func DecryptSignerKey(encoded, passphrase string) (*ecdsa.PrivateKey, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	plaintext, err := DecryptFromBase64(encoded, DeriveKey(passphrase))
	if err != nil {
		return nil, err
	}
	return ParseSignerKey(string(plaintext))
}

// SignerAddress returns the checksummed account address of a key.
func SignerAddress(key *ecdsa.PrivateKey) string {
	return ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
}
