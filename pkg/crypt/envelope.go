package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aretw0/snfs/pkg/core"
)

// Version is the protocol version written by this package.
const Version = "003"

// CheckVersion classifies the version prefix of an envelope.
func CheckVersion(envelope string) error {
	version, _, _ := strings.Cut(envelope, ":")
	switch version {
	case Version:
		return nil
	case "001", "002":
		return fmt.Errorf("%w: %s", core.ErrUnsupportedProtocolVersion, version)
	default:
		return fmt.Errorf("%w: %q", core.ErrInvalidProtocolVersion, version)
	}
}

// EncryptEnvelope encrypts plaintext under the hex keys ek/ak, binding it to uuid.
func EncryptEnvelope(plaintext []byte, ek, ak, uuid string) (string, error) {
	encKey, err := hexKey(ek)
	if err != nil {
		return "", err
	}
	authKey, err := hex.DecodeString(ak)
	if err != nil {
		return "", fmt.Errorf("invalid auth key: %w", err)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	ivHex := hex.EncodeToString(iv)
	ctB64 := base64.StdEncoding.EncodeToString(ct)
	mac := sign(authKey, Version, uuid, ivHex, ctB64)

	return strings.Join([]string{Version, hex.EncodeToString(mac), uuid, ivHex, ctB64}, ":"), nil
}

// DecryptEnvelope authenticates and decrypts an envelope produced for uuid.
func DecryptEnvelope(envelope, ek, ak, uuid string) ([]byte, error) {
	if err := CheckVersion(envelope); err != nil {
		return nil, err
	}

	parts := strings.Split(envelope, ":")
	// A sixth component carries auth params and is not covered by the hmac.
	if len(parts) != 5 && len(parts) != 6 {
		return nil, fmt.Errorf("%w: %d components", core.ErrMalformedEnvelope, len(parts))
	}
	version, authHex, envUUID, ivHex, ctB64 := parts[0], parts[1], parts[2], parts[3], parts[4]

	authKey, err := hex.DecodeString(ak)
	if err != nil {
		return nil, fmt.Errorf("invalid auth key: %w", err)
	}
	// The tag is compared as hex text, so one that does not decode is
	// tampering too. It covers the envelope's own uuid, checked after.
	got := hex.EncodeToString(sign(authKey, version, envUUID, ivHex, ctB64))
	if !hmac.Equal([]byte(got), []byte(authHex)) {
		return nil, fmt.Errorf("%w: item %s", core.ErrTamperDetected, uuid)
	}
	if envUUID != uuid {
		return nil, fmt.Errorf("%w: item %s", core.ErrUUIDMismatch, uuid)
	}

	encKey, err := hexKey(ek)
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: bad iv", core.ErrMalformedEnvelope)
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: bad ciphertext", core.ErrMalformedEnvelope)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	pt, err = unpad(pt, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return pt, nil
}

func sign(key []byte, version, uuid, ivHex, ctB64 string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(strings.Join([]string{version, uuid, ivHex, ctB64}, ":")))
	return h.Sum(nil)
}

func hexKey(s string) ([]byte, error) {
	k, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(k) != 32 {
		return nil, fmt.Errorf("invalid encryption key length %d", len(k))
	}
	return k, nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%w: bad padding", core.ErrMalformedEnvelope)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: bad padding", core.ErrMalformedEnvelope)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", core.ErrMalformedEnvelope)
		}
	}
	return b[:len(b)-n], nil
}
