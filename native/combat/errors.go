package combat

import "errors"

var (
	ErrSessionNotFound = errors.New("combat: session not found")
	ErrSessionExists   = errors.New("combat: session id already in use")
	ErrSessionActive   = errors.New("combat: session still active")
	ErrSessionFinished = errors.New("combat: session already finished")
	ErrBeastNotFound   = errors.New("combat: beast not found")

	ErrNotOwner       = errors.New("combat: caller does not own the challenger")
	ErrNotParticipant = errors.New("combat: caller is not a participant")
	ErrSelfCombat     = errors.New("combat: both beasts belong to the same owner")
	ErrSameBeast      = errors.New("combat: a beast cannot fight itself")

	ErrInsufficientWager   = errors.New("combat: wager outside configured bounds")
	ErrCooldownActive      = errors.New("combat: challenger not ready for combat")
	ErrOpponentUnavailable = errors.New("combat: opponent not ready for combat")

	ErrTurnTimeout        = errors.New("combat: turn window expired")
	ErrOutOfTurn          = errors.New("combat: not this participant's turn")
	ErrInvalidAbilitySlot = errors.New("combat: ability slot out of range")
	ErrAbilityNotUnlocked = errors.New("combat: ability not unlocked for this slot")
	ErrInvalidAbilityType = errors.New("combat: unknown ability type")

	ErrArithmeticOverflow = errors.New("combat: arithmetic overflow")
)
