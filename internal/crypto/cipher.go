// Package crypto provides the reversible cipher used to store AI provider API keys
// at rest.
//
// The cipher is AES-256-CBC with PKCS#7 padding and a single key and IV supplied
// by the operator (ENCRYPTION_KEY and ENCRYPTION_IV, both hex). Ciphertext is
// stored as lowercase hex. Because the IV is static, equal plaintexts encrypt to
// equal ciphertexts; stored values are compatible with records written by earlier
// deployments, so the scheme is kept as-is.
package crypto

import (
	"bytes"
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
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the CBC initialisation vector length in bytes.
	IVSize = aes.BlockSize
)

var (
	// ErrNotConfigured is returned by Encrypt/Decrypt when no valid key/IV was supplied.
	ErrNotConfigured = errors.New("crypto: encryption key or IV is not configured")
	// ErrKeyLengthInvalid is returned when the decoded key is not exactly 32 bytes.
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrIVLengthInvalid is returned when the decoded IV is not exactly 16 bytes.
	ErrIVLengthInvalid = errors.New("crypto: iv must be exactly 16 bytes")
	// ErrCiphertextCorrupted is returned when ciphertext is not valid hex or not block aligned.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted")
	// ErrDecryptionFailed is returned when the padding check fails, which means a wrong key or tampering.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
)

// StaticCipher encrypts short secrets with a fixed key and IV.
// The zero value is an unconfigured cipher whose non-empty operations fail with
// ErrNotConfigured.
type StaticCipher struct {
	block cipher.Block
	iv    []byte
}

// NewStaticCipher builds a cipher from raw key and IV bytes.
func NewStaticCipher(key, iv []byte) (*StaticCipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeyLengthInvalid
	}
	if len(iv) != IVSize {
		return nil, ErrIVLengthInvalid
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create block cipher: %w", err)
	}
	ivCopy := make([]byte, IVSize)
	copy(ivCopy, iv)
	return &StaticCipher{block: block, iv: ivCopy}, nil
}

// NewStaticCipherFromHex decodes hex key and IV strings (as found in the environment)
// and builds a cipher.
func NewStaticCipherFromHex(keyHex, ivHex string) (*StaticCipher, error) {
	keyHex, ivHex = strings.TrimSpace(keyHex), strings.TrimSpace(ivHex)
	if keyHex == "" || ivHex == "" {
		return nil, ErrNotConfigured
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: ENCRYPTION_KEY is not valid hex: %w", err)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: ENCRYPTION_IV is not valid hex: %w", err)
	}
	return NewStaticCipher(key, iv)
}

// Configured reports whether the cipher holds a usable key and IV.
func (c *StaticCipher) Configured() bool {
	return c != nil && c.block != nil
}

// Encrypt returns the hex ciphertext of plaintext. Empty input yields empty output.
func (c *StaticCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Empty input yields empty output.
func (c *StaticCipher) Decrypt(ciphertextHex string) (string, error) {
	if ciphertextHex == "" {
		return "", nil
	}
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrCiphertextCorrupted
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)
	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrDecryptionFailed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return b[:len(b)-n], nil
}

// GenerateKeyMaterial returns a fresh random key and IV, hex encoded, suitable for
// ENCRYPTION_KEY and ENCRYPTION_IV.
func GenerateKeyMaterial() (keyHex, ivHex string, err error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", "", err
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(key), hex.EncodeToString(iv), nil
}
