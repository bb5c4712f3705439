package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"uk.co.dudmesh.replybot/internal/model"
)

const (
	SizeOfKey   int = 32
	SizeOfNonce int = 12
	SizeOfTag   int = 16

	// PlaintextMarker is stored in the IV field of tokens sealed without a key.
	PlaintextMarker string = "plaintext"
)

// Vault seals platform access tokens with AES-256-GCM.
type Vault struct {
	aead       cipher.AEAD
	production bool
}

// NewVault derives the key from secret. An empty secret is tolerated outside
// production, where tokens are wrapped in the plaintext marker instead.
func NewVault(secret string, production bool) (*Vault, error) {
	v := &Vault{production: production}
	if secret == "" {
		if production {
			return nil, model.ErrorVaultMisconfigured
		}
		return v, nil
	}

	block, err := aes.NewCipher(ParseKey(secret))
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM cipher: %w", err)
	}
	v.aead = aesgcm
	return v, nil
}

// ParseKey accepts a base64 or hex encoded 256 bit key. Anything else is used
// as raw bytes, zero padded or truncated to the key size.
func ParseKey(secret string) []byte {
	if key, err := base64.StdEncoding.DecodeString(secret); err == nil && len(key) == SizeOfKey {
		return key
	}
	if key, err := hex.DecodeString(secret); err == nil && len(key) == SizeOfKey {
		return key
	}
	key := make([]byte, SizeOfKey)
	copy(key, secret)
	return key
}

func (v *Vault) Keyed() bool {
	return v.aead != nil
}

func (v *Vault) Encrypt(plaintext string) (*model.SealedToken, error) {
	if v.aead == nil {
		if v.production {
			return nil, model.ErrorVaultMisconfigured
		}
		return &model.SealedToken{
			Cipher: base64.StdEncoding.EncodeToString([]byte(plaintext)),
			IV:     PlaintextMarker,
		}, nil
	}

	nonce := make([]byte, SizeOfNonce)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("creating AES nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - SizeOfTag

	return &model.SealedToken{
		Cipher: base64.StdEncoding.EncodeToString(sealed[:split]),
		IV:     base64.StdEncoding.EncodeToString(nonce),
		Tag:    base64.StdEncoding.EncodeToString(sealed[split:]),
	}, nil
}

func (v *Vault) Decrypt(token *model.SealedToken) (string, error) {
	if token == nil {
		return "", fmt.Errorf("%w: missing token", model.ErrorCrypto)
	}
	if v.aead == nil && v.production {
		return "", model.ErrorVaultMisconfigured
	}

	if token.IV == PlaintextMarker {
		plaintext, err := base64.StdEncoding.DecodeString(token.Cipher)
		if err != nil {
			return "", fmt.Errorf("%w: decoding plaintext token", model.ErrorCrypto)
		}
		return string(plaintext), nil
	}

	if v.aead == nil {
		return "", fmt.Errorf("%w: token is encrypted but no key is configured", model.ErrorCrypto)
	}

	nonce, err := base64.StdEncoding.DecodeString(token.IV)
	if err != nil || len(nonce) != SizeOfNonce {
		return "", fmt.Errorf("%w: invalid nonce", model.ErrorCrypto)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(token.Cipher)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext", model.ErrorCrypto)
	}
	tag, err := base64.StdEncoding.DecodeString(token.Tag)
	if err != nil || len(tag) != SizeOfTag {
		return "", fmt.Errorf("%w: invalid tag", model.ErrorCrypto)
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: message authentication failed", model.ErrorCrypto)
	}
	return string(plaintext), nil
}

// Seal returns the storage record for plaintext.
func (v *Vault) Seal(plaintext string) (string, error) {
	token, err := v.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	record, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshalling sealed token: %w", err)
	}
	return string(record), nil
}

// Open reverses Seal. Records that are not a sealed token are legacy
// plaintext and are returned as is with legacy set.
func (v *Vault) Open(record string) (plaintext string, legacy bool, err error) {
	record = strings.TrimSpace(record)
	if record == "" {
		return "", false, fmt.Errorf("%w: empty credential", model.ErrorCrypto)
	}

	token, ok := parseRecord(record)
	if !ok {
		if v.aead == nil && v.production {
			return "", false, model.ErrorVaultMisconfigured
		}
		return record, true, nil
	}

	plaintext, err = v.Decrypt(token)
	if err != nil {
		return "", false, err
	}
	return plaintext, token.IV == PlaintextMarker, nil
}

// NeedsReseal reports whether a legacy record should be rewritten now that a
// key is available.
func (v *Vault) NeedsReseal(legacy bool) bool {
	return legacy && v.aead != nil
}

func parseRecord(record string) (*model.SealedToken, bool) {
	if !strings.HasPrefix(record, "{") {
		return nil, false
	}
	token := &model.SealedToken{}
	if err := json.Unmarshal([]byte(record), token); err != nil {
		return nil, false
	}
	if token.Cipher == "" && token.IV == "" {
		return nil, false
	}
	return token, true
}

func IsCryptoError(err error) bool {
	return errors.Is(err, model.ErrorCrypto) || errors.Is(err, model.ErrorVaultMisconfigured)
}
