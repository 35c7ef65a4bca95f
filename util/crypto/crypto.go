// Package crypto provides password hashing and secret comparison helpers.
package crypto

import (
	"crypto/subtle"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no stored hash exists so that a missing
// account costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("trojan-ui"), bcrypt.DefaultCost)
	return hash
})

// HashPasswordAsBcrypt generates a bcrypt hash of the given password.
func HashPasswordAsBcrypt(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPasswordHash verifies if the given password matches the bcrypt hash.
// An empty hash is treated as a mismatch after doing the same amount of work.
func CheckPasswordHash(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// SecretEqual compares two opaque secrets in constant time with respect to
// their contents.
func SecretEqual(presented, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
