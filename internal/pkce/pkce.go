// Package pkce generates Proof Key for Code Exchange verifier/challenge pairs (RFC 7636, S256 method).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	MethodS256 = "S256"

	MinVerifierLength     = 43
	MaxVerifierLength     = 128
	DefaultVerifierLength = 128

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Largest multiple of len(alphabet) that fits in a byte; bytes at or above it are rejected.
	rejectAbove = 256 - 256%len(alphabet)
)

var (
	ErrCryptoUnavailable     = fmt.Errorf("cryptographic random source unavailable")
	ErrInvalidVerifierLength = fmt.Errorf("invalid code verifier length")
)

// Pair is a verifier and the challenge derived from it.
type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

// Generator draws verifiers from Random, which defaults to [crypto/rand.Reader].
type Generator struct {
	Random io.Reader
}

var defaultGenerator = Generator{}

// GenerateVerifier returns a verifier of exactly length characters using the default random source.
func GenerateVerifier(length int) (string, error) {
	return defaultGenerator.GenerateVerifier(length)
}

// NewPair generates a verifier of the given length and its S256 challenge.
func NewPair(length int) (Pair, error) {
	return defaultGenerator.NewPair(length)
}

// GenerateVerifier returns length characters drawn uniformly from the 62-character alphanumeric alphabet.
func (g Generator) GenerateVerifier(length int) (string, error) {
	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidVerifierLength, length, MinVerifierLength, MaxVerifierLength)
	}

	src := g.Random
	if src == nil {
		src = rand.Reader
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// NewPair generates a verifier of the given length and its S256 challenge.
func (g Generator) NewPair(length int) (Pair, error) {
	verifier, err := g.GenerateVerifier(length)
	if err != nil {
		return Pair{}, err
	}

	challenge, err := DeriveChallenge(verifier)
	if err != nil {
		return Pair{}, err
	}

	return Pair{Verifier: verifier, Challenge: challenge, Method: MethodS256}, nil
}

// DeriveChallenge returns BASE64URL(SHA256(verifier)) without padding.
func DeriveChallenge(verifier string) (string, error) {
	if verifier == "" {
		return "", fmt.Errorf("%w: empty verifier", ErrInvalidVerifierLength)
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
