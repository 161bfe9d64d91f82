package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var requestIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// NewRequestID returns a fresh 128-bit random id as 32 lowercase hex chars.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsValidRequestID reports whether id has the NewRequestID shape.
// Stores use it before putting an id into a file name.
func IsValidRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}
