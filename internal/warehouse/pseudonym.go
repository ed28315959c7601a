package warehouse

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Pseudonymizer derives the warehouse key for a user. The warehouse only
// ever sees this key, so erasure can target a user's rows without the
// warehouse storing the raw user id.
type Pseudonymizer struct {
	salt []byte
}

// NewPseudonymizer creates a pseudonymizer with the given service salt.
func NewPseudonymizer(salt string) *Pseudonymizer {
	return &Pseudonymizer{salt: []byte(salt)}
}

// Key returns the pseudonymized identifier for a user id. The derivation
// is HMAC-SHA256 under the service salt; the same user always maps to the
// same key.
func (p *Pseudonymizer) Key(userID string) string {
	mac := hmac.New(sha256.New, p.salt)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}
