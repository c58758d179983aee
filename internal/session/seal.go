package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	envelopeVersion = 1
	keyInfo         = "postgate session v1"
)

var ErrUnsealFailed = errors.New("session record could not be unsealed")

// envelope is the on-disk record. Nonce and Data are base64 in JSON.
type envelope struct {
	Version int    `json:"version"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// deriveKey binds the record key to both the secret and the account, so a
// record only opens for the credential that created it.
func deriveKey(secret, accountKey string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), []byte(accountKey), []byte(keyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func seal(secret, accountKey string, blob []byte) ([]byte, error) {
	key, err := deriveKey(secret, accountKey)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return json.Marshal(envelope{
		Version: envelopeVersion,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, blob, []byte(accountKey)),
	})
}

func unseal(secret, accountKey string, record []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(record, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrUnsealFailed, env.Version)
	}

	key, err := deriveKey(secret, accountKey)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce", ErrUnsealFailed)
	}

	blob, err := aead.Open(nil, env.Nonce, env.Data, []byte(accountKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	return blob, nil
}
