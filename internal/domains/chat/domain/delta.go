package domain

import (
	"strings"

	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

// NextDelta returns the suffix of current beyond previous. Engines report
// growing cumulative text; a fragment that shrinks or rewrites what was
// already relayed is a protocol violation.
func NextDelta(previous, current string) (string, error) {
	if !strings.HasPrefix(current, previous) {
		return "", apperrors.NewGeneration("engine emitted non-monotonic text", nil)
	}
	return current[len(previous):], nil
}
