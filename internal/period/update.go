package period

// Update classifies the change between two consecutive periods
type Update int

const (
	UpdateNone Update = iota
	UpdateTransitionStarted
	UpdateTransitionProgress
	UpdateTransitionCompleted
	// UpdateUnexpectedJump is only reachable through clock anomalies or config races
	UpdateUnexpectedJump
)

func (u Update) String() string {
	switch u {
	case UpdateNone:
		return "none"
	case UpdateTransitionStarted:
		return "transition_started"
	case UpdateTransitionProgress:
		return "transition_progress"
	case UpdateTransitionCompleted:
		return "transition_completed"
	case UpdateUnexpectedJump:
		return "unexpected_jump"
	default:
		return "unknown"
	}
}

// NeedsApply reports whether the new period must be sent to the display
func (u Update) NeedsApply() bool {
	return u != UpdateNone
}

// ShouldUpdate classifies the move from prev to next. A nil prev means the
// previous state is unknown and is reported as an unexpected jump.
func ShouldUpdate(prev, next Period) Update {
	if prev == nil {
		return UpdateUnexpectedJump
	}

	pk, nk := prev.Kind(), next.Kind()

	switch {
	case pk == nk && !pk.Transitioning():
		return UpdateNone

	case pk == nk:
		pp, _ := ProgressOf(prev)
		np, _ := ProgressOf(next)
		if pp == np {
			return UpdateNone
		}
		return UpdateTransitionProgress

	case !pk.Transitioning() && nk.Transitioning():
		if (pk == KindDay && nk == KindSunset) || (pk == KindNight && nk == KindSunrise) {
			return UpdateTransitionStarted
		}
		return UpdateUnexpectedJump

	case pk.Transitioning() && !nk.Transitioning():
		if (pk == KindSunset && nk == KindNight) || (pk == KindSunrise && nk == KindDay) {
			return UpdateTransitionCompleted
		}
		return UpdateUnexpectedJump

	default:
		// stable→stable of a different kind, or sunset↔sunrise
		return UpdateUnexpectedJump
	}
}
