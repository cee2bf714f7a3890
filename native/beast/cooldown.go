package beast

// Cooldown helpers are stateless on purpose: the end of a cooldown is always
// derived from (last action, duration) so a governed duration change takes
// effect for every beast at once instead of desynchronising stored deadlines.

// CanAct reports whether enough time has elapsed since the last action.
func CanAct(lastAt, now, duration int64) bool {
	return now-lastAt >= duration
}

// CooldownEnd derives the first instant the action becomes available again.
func CooldownEnd(lastAt, duration int64) int64 {
	return lastAt + duration
}

// CooldownRemaining returns the seconds left before the action unlocks, or
// zero when it is already available. Used to put actionable detail into
// cooldown errors.
func CooldownRemaining(lastAt, now, duration int64) int64 {
	remaining := CooldownEnd(lastAt, duration) - now
	if remaining < 0 {
		return 0
	}
	return remaining
}
