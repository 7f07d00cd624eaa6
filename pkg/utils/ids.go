package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a random identifier for user records.
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GeneratePassword returns a random funding-account password. Two UUIDs are
// joined so the result survives password strength checks on the keybase side.
func GeneratePassword() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// GenerateNodeURL returns a placeholder service URL for a new validator node.
func GenerateNodeURL() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s.%s.com", random[:6], random[6:18])
}
