// Package hasher wraps the one-way password hashing primitive used for admin
// credentials.
package hasher

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the fixed bcrypt work factor for every stored digest.
const Cost = 10

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for inputs over MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// Hasher hashes and compares passwords.
type Hasher interface {
	// Hash returns a salted one-way digest of plaintext.
	Hash(plaintext string) (string, error)

	// Compare reports whether plaintext matches digest. A mismatch is
	// (false, nil); an error is returned only for a malformed digest.
	Compare(plaintext, digest string) (bool, error)
}

// Bcrypt implements Hasher with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a Hasher using the fixed Cost.
func NewBcrypt() *Bcrypt {
	return &Bcrypt{cost: Cost}
}

// Hash returns a bcrypt digest of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Compare checks plaintext against a bcrypt digest.
func (b *Bcrypt) Compare(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}
