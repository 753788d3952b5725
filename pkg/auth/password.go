package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Admin password policy
const (
	BcryptCost     = 12
	MinPasswordLen = 12
	MaxPasswordLen = 72 // bcrypt ignores bytes past this
)

var ErrEmptyPassword = errors.New("password cannot be empty")

// PolicyError lists every rule a candidate password broke
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password rejected: " + strings.Join(e.Violations, "; ")
}

type charClass struct {
	name  string
	match func(rune) bool
}

var requiredClasses = []charClass{
	{"an uppercase letter", unicode.IsUpper},
	{"a lowercase letter", unicode.IsLower},
	{"a digit", unicode.IsDigit},
	{"a symbol", func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
}

// Compared lowercased
var weakPasswords = []string{
	"password123!", "passw0rd1234", "welcome12345!", "administrator1!",
	"admin@123456", "changeme123!", "qwerty123456!", "letmein12345!",
}

// ValidatePassword checks a new admin password against the policy. Only the
// bootstrap path calls it; logins never do.
func ValidatePassword(password string) error {
	var violations []string

	switch n := len(password); {
	case n < MinPasswordLen:
		violations = append(violations, fmt.Sprintf("shorter than %d bytes", MinPasswordLen))
	case n > MaxPasswordLen:
		violations = append(violations, fmt.Sprintf("longer than %d bytes", MaxPasswordLen))
	}

	for _, class := range requiredClasses {
		if strings.IndexFunc(password, class.match) < 0 {
			violations = append(violations, "missing "+class.name)
		}
	}

	if slices.Contains(weakPasswords, strings.ToLower(password)) {
		violations = append(violations, "on the common password list")
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in users.password_hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword returns nil when password matches hash
func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("no-such-admin"), BcryptCost)
	return hash
})

// CompareDummy spends one bcrypt comparison and always reports a mismatch,
// so an unknown email costs as much as a wrong password.
func CompareDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return bcrypt.ErrMismatchedHashAndPassword
}
