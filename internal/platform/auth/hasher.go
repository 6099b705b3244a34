package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialHasher turns secrets into digests and checks them.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// bcrypt ignores input past 72 bytes; longer secrets are truncated so
// hashing and verification agree.
const maxSecretBytes = 72

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(truncate(secret), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), truncate(secret)) == nil
}

func truncate(secret string) []byte {
	b := []byte(secret)
	if len(b) > maxSecretBytes {
		b = b[:maxSecretBytes]
	}
	return b
}
