// Package digest provides the one-way digests used for credentials and session tokens.
package digest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Func maps text to a fixed-length lowercase hex string.
type Func func(text string) string

// SHA256Hex is the default digest.
func SHA256Hex(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Hasher derives and verifies stored credential hashes.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) bool
}

const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// ErrUnknownScheme is returned by ForScheme.
var ErrUnknownScheme = errors.New("unknown credential hash scheme")

// ForScheme picks a Hasher by configuration name.
func ForScheme(scheme string, bcryptCost int) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeSHA256:
		return NewDigestHasher(SHA256Hex), nil
	case SchemeBcrypt:
		return NewBcryptHasher(bcryptCost), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// digestHasher is deterministic and unsalted: the same secret always yields the
// same hash, so stored hashes are open to precomputed tables.
type digestHasher struct {
	digest Func
}

func NewDigestHasher(fn Func) Hasher {
	if fn == nil {
		fn = SHA256Hex
	}
	return &digestHasher{digest: fn}
}

func (h *digestHasher) Hash(secret string) (string, error) {
	return h.digest(secret), nil
}

func (h *digestHasher) Verify(hash, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(h.digest(secret))) == 1
}

// bcryptHasher salts every hash; Verify also accepts legacy unsalted digests so
// switching schemes does not lock existing accounts out.
type bcryptHasher struct {
	cost   int
	legacy Hasher
}

func NewBcryptHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost, legacy: NewDigestHasher(SHA256Hex)}
}

func (h *bcryptHasher) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *bcryptHasher) Verify(hash, secret string) bool {
	if !strings.HasPrefix(hash, "$2") {
		return h.legacy.Verify(hash, secret)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
