// Package token turns logical user identifiers into opaque, fixed-shape
// tokens.
//
// This is ID obfuscation, not confidentiality. The key and IV live only for
// the lifetime of one Obfuscator and are never persisted, so tokens produced
// by different runs are not comparable and cannot be reversed later.
package token

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the CBC initialization vector length in bytes.
	IVSize = aes.BlockSize
)

// Obfuscator maps seeds to hex tokens with a process-lifetime secret.
type Obfuscator struct {
	block cipher.Block
	iv    [IVSize]byte
}

// NewObfuscator draws a fresh secret from crypto/rand.
func NewObfuscator() (*Obfuscator, error) {
	key := make([]byte, KeySize)
	iv := make([]byte, IVSize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("token: failed to draw key: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("token: failed to draw iv: %w", err)
	}
	return NewObfuscatorWithKey(key, iv)
}

// NewObfuscatorWithKey builds an Obfuscator from an explicit secret.
func NewObfuscatorWithKey(key, iv []byte) (*Obfuscator, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("token: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("token: iv must be %d bytes, got %d", IVSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	o := &Obfuscator{block: block}
	copy(o.iv[:], iv)
	return o, nil
}

// Tokenize returns the lowercase hex encoding of the padded CBC transform of
// seed. Seeds shorter than one block yield 32 characters, seeds of 16-31
// bytes yield 64.
func (o *Obfuscator) Tokenize(seed string) string {
	padded := pad([]byte(seed))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(o.block, o.iv[:]).CryptBlocks(out, padded)
	return hex.EncodeToString(out)
}

// Seed returns the logical identifier of user j in organization i.
func Seed(org, user int) string {
	return "user_" + strconv.Itoa(org) + "_" + strconv.Itoa(user)
}

// pad applies PKCS#7 padding to a whole number of blocks.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}
