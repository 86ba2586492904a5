// Package cipher reverses the XOR stream obfuscation some readers apply to
// page image URLs. A token is base64 text whose bytes are XORed with a
// repeating key.
package cipher

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrEmptyKey = errors.New("cipher: empty key")

// Provenance records where a key candidate came from.
type Provenance string

const (
	FromPage  Provenance = "page"
	FromKnown Provenance = "known"
)

type KeyCandidate struct {
	Value      string     `yaml:"value" json:"value"`
	Provenance Provenance `yaml:"-" json:"provenance"`
}

// Known wraps configured fallback keys as candidates, preserving order.
func Known(keys []string) []KeyCandidate {
	out := make([]KeyCandidate, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		out = append(out, KeyCandidate{Value: k, Provenance: FromKnown})
	}

	return out
}

func xor(data []byte, key string) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}

	return out
}

func Encode(plain, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	return base64.StdEncoding.EncodeToString(xor([]byte(plain), key)), nil
}

func Decode(token, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	raw, err := decodeBase64(strings.TrimSpace(token))
	if err != nil {
		return "", err
	}

	return string(xor(raw, key)), nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, firstErr
}

// Plausible reports whether a decoded value looks like a path or URL rather
// than key-mismatch garbage.
func Plausible(s string) bool {
	if len(s) < 8 || strings.IndexByte(s, 0) >= 0 || !utf8.ValidString(s) {
		return false
	}

	for _, r := range s {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}

	return strings.Contains(s, "/") || strings.Contains(s, ".")
}
