package detection

import (
	"errors"
	"fmt"
)

// ErrUnknownUser is returned when the user directory does not know the claimant.
var ErrUnknownUser = errors.New("unknown user")

// ValidationError rejects a malformed claim before any lookup happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
