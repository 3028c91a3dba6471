package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/plantops/breakdown-board/internal/domain"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters for newly written credentials. Stored per credential,
// so these can change without invalidating existing records.
const (
	pbkdf2Iterations = 120_000
	pbkdf2KeyLen     = 32
	saltLen          = 16
)

// HashPIN derives a stored credential from a raw PIN.
func HashPIN(pin string) *domain.Credential {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		// crypto/rand failing means the process cannot do anything
		// credential-related safely.
		panic(err)
	}

	key := pbkdf2.Key([]byte(pin), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return &domain.Credential{
		Scheme:     domain.CredentialPBKDF2,
		Salt:       hex.EncodeToString(salt),
		Hash:       hex.EncodeToString(key),
		Iterations: pbkdf2Iterations,
		KeyLen:     pbkdf2KeyLen,
	}
}

// VerifyPIN checks a raw PIN against a stored credential. Both schemes
// compare in constant time.
func VerifyPIN(cred *domain.Credential, pin string) bool {
	if cred == nil {
		return false
	}

	switch cred.Scheme {
	case domain.CredentialPlain:
		if cred.Value == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(cred.Value), []byte(pin)) == 1

	case domain.CredentialPBKDF2:
		salt, err := hex.DecodeString(cred.Salt)
		if err != nil {
			return false
		}
		want, err := hex.DecodeString(cred.Hash)
		if err != nil || len(want) == 0 {
			return false
		}
		iterations := cred.Iterations
		if iterations <= 0 {
			iterations = pbkdf2Iterations
		}
		keyLen := cred.KeyLen
		if keyLen <= 0 {
			keyLen = pbkdf2KeyLen
		}
		got := pbkdf2.Key([]byte(pin), salt, iterations, keyLen, sha256.New)
		return subtle.ConstantTimeCompare(got, want) == 1
	}
	return false
}
