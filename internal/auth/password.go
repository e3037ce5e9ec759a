package auth

import (
	"golang.org/x/crypto/bcrypt"

	"opsdesk/internal/apperr"
)

// MinPasswordLength is the shortest password accepted for a user.
const MinPasswordLength = 8

// HashPassword generates a bcrypt hash of the password at the given cost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperr.Invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(password, hashedPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
