package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"unicode/utf8"
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// EmailCipher encrypts stored email fields with a key derived per user.
// Output is base64(iv || AES-256-CBC ciphertext) with PKCS#7 padding.
type EmailCipher struct {
	secret string
}

// NewEmailCipher creates a cipher bound to the server-wide secret
func NewEmailCipher(secret string) *EmailCipher {
	return &EmailCipher{secret: secret}
}

func (c *EmailCipher) key(userID int64) []byte {
	sum := sha256.Sum256([]byte(fmt.Sprintf("eliano-key-%d-%s", userID, c.secret)))
	return sum[:]
}

// Encrypt encrypts a field for the given user. Empty values stay empty.
func (c *EmailCipher) Encrypt(userID int64, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(c.key(userID))
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Values that are not valid ciphertext for this
// user are returned unchanged, so legacy plaintext rows stay readable.
func (c *EmailCipher) Decrypt(userID int64, value string) string {
	if len(value) < 24 || !base64Pattern.MatchString(value) {
		return value
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return value
	}

	block, err := aes.NewCipher(c.key(userID))
	if err != nil {
		return value
	}

	iv, data := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil || !utf8.Valid(plain) {
		return value
	}
	return string(plain)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

// EncryptSecret seals a short secret (e.g. an SMTP password kept in the
// session) with AES-GCM and returns it hex encoded.
func EncryptSecret(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// DecryptSecret opens a value produced by EncryptSecret
func DecryptSecret(encrypted string, key []byte) (string, error) {
	data, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
