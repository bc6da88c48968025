// Package crypt reverses the transform applied by the controller API to every IR code blob.
//
// A blob is the standard base64 encoding of an AES-128 ECB ciphertext whose plaintext was
// PKCS#7 padded. Decryption is pure: the same blob always yields the same payload.
//
// The scheme and DefaultKey are a reconstruction that has not been checked against real
// vendor blobs. Use the decrypt-key setting (New, NewFromHex) when the vendor key differs.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrDecode is returned when a blob does not honour its encoding contract.
var ErrDecode = errors.New("invalid IR code blob")

// DefaultKey is the AES key used when none is configured. It is not a verified vendor key.
var DefaultKey = []byte("3Rl8Yx0mPq6Vb2Nc")

// Decryptor decrypts blobs with a fixed key.
type Decryptor struct {
	block cipher.Block
}

// New returns a Decryptor for the given AES key, which must be 16, 24 or 32 bytes long.
func New(key []byte) (*Decryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid decryption key: %v", err)
	}
	return &Decryptor{block: block}, nil
}

// NewFromHex is like New with a hexadecimal representation of the key.
// An empty string selects DefaultKey.
func NewFromHex(key string) (*Decryptor, error) {
	if key == "" {
		return New(DefaultKey)
	}

	k, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decryption key is not valid hexadecimal: %v", err)
	}
	return New(k)
}

var defaultDecryptor = func() *Decryptor {
	d, err := New(DefaultKey)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in key: %v", err))
	}
	return d
}()

// Decrypt decrypts blob with DefaultKey.
func Decrypt(blob string) ([]byte, error) {
	return defaultDecryptor.Decrypt(blob)
}

// Decrypt returns the raw payload carried by blob.
//
// It never returns an empty payload without an error.
func (d Decryptor) Decrypt(blob string) ([]byte, error) {
	if blob == "" {
		return nil, fmt.Errorf("%w: empty blob", ErrDecode)
	}

	data, err := base64.StdEncoding.Strict().DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bs := d.block.BlockSize()
	if len(data) == 0 || len(data)%bs != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrDecode, len(data), bs)
	}

	plain := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		d.block.Decrypt(plain[i:i+bs], data[i:i+bs])
	}

	payload, err := unpad(plain, bs)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Encrypt is the inverse of Decrypt. It is used to build fixtures and to re-encode
// edited payloads for the same vendor tooling.
func (d Decryptor) Encrypt(payload []byte) string {
	bs := d.block.BlockSize()
	n := bs - len(payload)%bs
	plain := append(bytes.Clone(payload), bytes.Repeat([]byte{byte(n)}, n)...)

	out := make([]byte, len(plain))
	for i := 0; i < len(plain); i += bs {
		d.block.Encrypt(out[i:i+bs], plain[i:i+bs])
	}
	return base64.StdEncoding.EncodeToString(out)
}

// Encrypt encrypts payload with DefaultKey.
func Encrypt(payload []byte) string {
	return defaultDecryptor.Encrypt(payload)
}

func unpad(plain []byte, bs int) ([]byte, error) {
	n := int(plain[len(plain)-1])
	if n == 0 || n > bs || n > len(plain) {
		return nil, fmt.Errorf("%w: invalid padding length %d", ErrDecode, n)
	}
	for _, b := range plain[len(plain)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrDecode)
		}
	}

	payload := plain[:len(plain)-n]
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	return payload, nil
}
