package password

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"nutricoach/internal/core/domain"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12

	// MinLength is the minimum password length
	MinLength = 8

	// MaxBytes is the longest input bcrypt accepts
	MaxBytes = 72

	// Symbols is the punctuation set that satisfies the symbol requirement
	Symbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Character classes reported by PolicyError
const (
	ClassLength    = "length"
	ClassUppercase = "uppercase"
	ClassLowercase = "lowercase"
	ClassDigit     = "digit"
	ClassSymbol    = "symbol"
)

// PolicyError lists the requirements a rejected password is missing
type PolicyError struct {
	Missing []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: missing %s", domain.ErrPolicyViolation, strings.Join(e.Missing, ", "))
}

func (e *PolicyError) Unwrap() error {
	return domain.ErrPolicyViolation
}

// Check returns a *PolicyError if password fails any requirement
func Check(password string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(Symbols, r):
			hasSymbol = true
		}
	}

	var missing []string
	if len([]rune(password)) < MinLength || len(password) > MaxBytes {
		missing = append(missing, ClassLength)
	}
	if !hasUpper {
		missing = append(missing, ClassUppercase)
	}
	if !hasLower {
		missing = append(missing, ClassLowercase)
	}
	if !hasDigit {
		missing = append(missing, ClassDigit)
	}
	if !hasSymbol {
		missing = append(missing, ClassSymbol)
	}

	if len(missing) > 0 {
		return &PolicyError{Missing: missing}
	}
	return nil
}

// ValidateStrength checks if password meets every requirement
func ValidateStrength(password string) bool {
	return Check(password) == nil
}

// Policy hashes and verifies passwords with a fixed bcrypt cost
type Policy struct {
	cost int

	dummyOnce sync.Once
	dummy     string
}

// NewPolicy creates a policy; cost outside bcrypt's range falls back to DefaultCost
func NewPolicy(cost int) *Policy {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Policy{cost: cost}
}

// Cost returns the configured work factor
func (p *Policy) Cost() int {
	return p.cost
}

// Hash hashes a password using bcrypt after enforcing the strength policy
func (p *Policy) Hash(password string) (string, error) {
	if err := Check(password); err != nil {
		return "", err
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify compares a password with a hash; malformed hashes never match
func (p *Policy) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// VerifyDummy burns one comparison at the configured cost so unknown
// accounts take as long to reject as wrong passwords
func (p *Policy) VerifyDummy(password string) {
	p.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("Dummy-Passw0rd!"), p.cost)
		if err == nil {
			p.dummy = string(b)
		}
	})
	if p.dummy == "" {
		return
	}
	_ = bcrypt.CompareHashAndPassword([]byte(p.dummy), []byte(password))
}

// HashToken hashes a token using SHA256 (for refresh tokens)
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
