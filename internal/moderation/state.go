package moderation

import (
	"geowarden/internal/database/models"
)

// State is the review state of a detection.
type State string

const (
	StatePending   State = models.ReviewPending
	StateConfirmed State = models.ReviewConfirmed
	StateDismissed State = models.ReviewDismissed
)

// Action is a moderator decision.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionDismiss Action = "dismiss"
)

// transitions lists every allowed move. Anything missing is rejected.
var transitions = map[State]map[Action]State{
	StatePending: {
		ActionConfirm: StateConfirmed,
		ActionDismiss: StateDismissed,
	},
	StateConfirmed: {
		ActionConfirm: StateConfirmed,
	},
	StateDismissed: {
		ActionDismiss: StateDismissed,
	},
}

// Next returns the state reached by applying action to current.
func Next(current State, action Action) (State, bool) {
	next, ok := transitions[current][action]
	return next, ok
}

// StateOf reads the review state of a stored detection. Rows written before the
// review columns existed carry only is_confirmed_spoof.
func StateOf(d *models.GeoSpoofDetection) State {
	switch State(d.ReviewState) {
	case StateConfirmed, StateDismissed:
		return State(d.ReviewState)
	}
	if d.IsConfirmedSpoof {
		return StateConfirmed
	}
	return StatePending
}

func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionConfirm, ActionDismiss:
		return Action(s), true
	}
	return "", false
}
