package crypt

import (
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"

	"github.com/rakutentech/jwk-go/jwk"
)

// DecodePublicKey accepts a JWK either raw or base64 encoded.
func DecodePublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	keyData := []byte(publicKey)
	if decoded, err := base64.StdEncoding.DecodeString(publicKey); err == nil {
		keyData = decoded
	}

	keySpec, err := jwk.Parse(string(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	key, ok := keySpec.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", keySpec.Key)
	}
	return key, nil
}
