// Package recovery implements the logged-out account recovery flow: a
// user whose account is scheduled for deletion proves control of their
// email with a one-time code and cancels the deletion without signing in.
package recovery

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a recovery code.
type Status string

// Recovery code statuses.
const (
	StatusPending     Status = "pending"
	StatusUsed        Status = "used"
	StatusExpired     Status = "expired"
	StatusInvalidated Status = "invalidated"
)

// Recovery policy constants.
const (
	// CodeTTL is how long an issued code stays valid.
	CodeTTL = 24 * time.Hour

	// MaxAttempts is the verification attempt budget per code. The code
	// is invalidated once the budget is spent.
	MaxAttempts = 5

	// CodeLength is the number of digits in a code.
	CodeLength = 6
)

// Predefined recovery errors.
var (
	ErrCodeNotFound = errors.New("recovery code not found")
	ErrCodeConsumed = errors.New("recovery code already consumed")
)

// Code is an issued recovery code. Only the hash is stored; the plain
// code exists in the delivery email and nowhere else.
type Code struct {
	ID        string
	Email     string
	UserID    string
	RequestID string
	CodeHash  string
	Status    Status
	Attempts  int
	IssuedAt  time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Expired reports whether the code's TTL has elapsed at now.
func (c *Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// NewCodeID generates a recovery code id.
func NewCodeID() string {
	return "rec_" + uuid.New().String()[:22]
}

// GenerateCode returns a new random numeric code.
func GenerateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate recovery code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// ValidCodeFormat reports whether the input has the shape of an issued
// code: exactly CodeLength ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// HashCode returns the stored form of a code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
