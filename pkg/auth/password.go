package auth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost = 12 // PINs are low-entropy; lockout carries the real defense

	MinPINLen = 4
	MaxPINLen = 8

	personalCodeBytes = 20
)

// HashPIN hashes a customer PIN with bcrypt.
func HashPIN(pin string) (string, error) {
	if pin == "" {
		return "", fmt.Errorf("pin cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(pin), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePIN checks a PIN against its stored hash.
func ComparePIN(hashedPIN, pin string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPIN), []byte(pin))
}

// ValidatePIN enforces the PIN shape: digits only, bounded length. Errors
// are generic by design.
func ValidatePIN(pin string) error {
	if len(pin) < MinPINLen || len(pin) > MaxPINLen {
		return fmt.Errorf("pin must be %d to %d digits", MinPINLen, MaxPINLen)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("pin must contain only digits")
		}
	}
	return nil
}

// GeneratePersonalCode mints the static code embedded in a customer's
// personal QR. Base32 keeps it scannable and case-insensitive.
func GeneratePersonalCode() (string, error) {
	buf := make([]byte, personalCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate personal code: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
