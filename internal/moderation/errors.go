package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentReview means other moderators kept changing the detection until the retry budget ran out.
	ErrConcurrentReview = errors.New("detection was modified concurrently, retry the review")
	ErrUnknownAction    = errors.New("unknown review action")
	ErrInvalidSeverity  = errors.New("throttle severity must be between 1 and 5")
	ErrInvalidDuration  = errors.New("throttle duration must be positive")
	ErrInvalidModerator = errors.New("moderator id must be positive")
)

// InvalidStateError rejects a transition the state table does not allow.
type InvalidStateError struct {
	DetectionID uint
	Current     State
	Action      Action
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s detection %d: already %s", e.Action, e.DetectionID, e.Current)
}
