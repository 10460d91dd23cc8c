package config

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/pbkdf2"
)

// The settings token is gzipped JSON, base64-encoded so it travels through
// env vars, shell history and chat messages intact.

const (
	tokenName = "courtbook-settings"

	kdfIterations = 4096
	kdfSalt       = "courtbook.settings.v1"
)

// EncodeToken serializes settings into a portable token.
func EncodeToken(s Settings) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress settings: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress settings: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeToken reverses EncodeToken.
func DecodeToken(tok string) (Settings, error) {
	blob, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		return Settings{}, fmt.Errorf("decode settings token: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return Settings{}, fmt.Errorf("decode settings token: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return Settings{}, fmt.Errorf("decode settings token: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings token: %w", err)
	}
	return s, nil
}

func sealer(passphrase string) *securecookie.SecureCookie {
	hashKey := pbkdf2.Key([]byte(passphrase), []byte(kdfSalt+".hash"), kdfIterations, 64, sha256.New)
	blockKey := pbkdf2.Key([]byte(passphrase), []byte(kdfSalt+".block"), kdfIterations, 32, sha256.New)
	return securecookie.New(hashKey, blockKey).MaxAge(0)
}

// SealToken encrypts and authenticates a settings token with a passphrase.
func SealToken(s Settings, passphrase string) (string, error) {
	tok, err := EncodeToken(s)
	if err != nil {
		return "", err
	}
	sealed, err := sealer(passphrase).Encode(tokenName, tok)
	if err != nil {
		return "", fmt.Errorf("seal settings token: %w", err)
	}
	return sealed, nil
}

// OpenSealedToken decrypts a token produced by SealToken. A wrong passphrase
// fails the authenticity check rather than yielding garbage settings.
func OpenSealedToken(sealed, passphrase string) (Settings, error) {
	var tok string
	if err := sealer(passphrase).Decode(tokenName, sealed, &tok); err != nil {
		return Settings{}, fmt.Errorf("open settings token: %w", err)
	}
	return DecodeToken(tok)
}
