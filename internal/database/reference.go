package database

import (
	"crypto/rand"
	"fmt"
)

// referenceAlphabet excludes 0/O and 1/I to keep references readable over the phone
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateBookingReference produces a unique passenger-facing reference.
// Format: RB-XXXXXX (6 char alphanumeric). Example: RB-K7M2QP
func generateBookingReference(exists func(string) (bool, error)) (string, error) {
	for attempts := 0; attempts < 10; attempts++ {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range buf {
			buf[i] = referenceAlphabet[int(buf[i])%len(referenceAlphabet)]
		}
		newRef := fmt.Sprintf("RB-%s", buf)

		taken, err := exists(newRef)
		if err != nil {
			return "", err
		}
		if !taken {
			return newRef, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique booking reference after 10 attempts")
}
