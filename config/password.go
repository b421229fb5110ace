package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/yadunandan004/dblogger/logerr"
)

func gcmFor(passKey string) (cipher.AEAD, error) {
	if passKey == "" {
		return nil, errors.New("passKey is empty")
	}
	key := sha256.Sum256([]byte(passKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptPassword seals plain with AES-256-GCM under SHA-256(passKey) and
// returns base64(nonce || ciphertext).
func EncryptPassword(plain, passKey string) (string, error) {
	gcm, err := gcmFor(passKey)
	if err != nil {
		return "", logerr.New(logerr.KindConfig, "encrypt_password", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", logerr.New(logerr.KindConfig, "encrypt_password", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func DecryptPassword(encoded, passKey string) (string, error) {
	gcm, err := gcmFor(passKey)
	if err != nil {
		return "", logerr.New(logerr.KindConfig, "decrypt_password", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", logerr.Errorf(logerr.KindConfig, "decrypt_password", "databasePass is not base64: %v", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", logerr.Errorf(logerr.KindConfig, "decrypt_password", "databasePass is too short")
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", logerr.Errorf(logerr.KindConfig, "decrypt_password", "databasePass does not decrypt with passKey")
	}
	return string(plain), nil
}
