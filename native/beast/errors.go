package beast

import "errors"

var (
	// Validation failures.
	ErrNameTooLong         = errors.New("beast: name too long")
	ErrURITooLong          = errors.New("beast: uri too long")
	ErrDuplicateURI        = errors.New("beast: metadata uri already in use")
	ErrInvalidActivityType = errors.New("beast: invalid activity type")
	ErrInvalidTraitIndex   = errors.New("beast: invalid trait index")
	ErrInvalidAbilityID    = errors.New("beast: invalid ability id")
	ErrInvalidRarityScore  = errors.New("beast: rarity score does not match traits")

	// Authorization failures.
	ErrNotOwner     = errors.New("beast: caller does not own this beast")
	ErrUnauthorized = errors.New("beast: caller is not the authority")

	// State and timing failures.
	ErrCooldownActive         = errors.New("beast: activity cooldown active")
	ErrBreedingCooldownActive = errors.New("beast: breeding cooldown active")
	ErrMaxBreedingReached     = errors.New("beast: maximum breeding count reached")
	ErrNoRewardsToClaim       = errors.New("beast: no rewards to claim")
	ErrTraitMaxReached        = errors.New("beast: trait already at maximum value")
	ErrAbilityNotUnlocked     = errors.New("beast: ability not unlocked for this slot")
	ErrAbilityAlreadyUnlocked = errors.New("beast: ability already unlocked for this slot")
	ErrAbilityMaxLevel        = errors.New("beast: ability already at maximum level")

	// Economic failures.
	ErrInsufficientFunds   = errors.New("beast: insufficient token balance")
	ErrInsufficientPayment = errors.New("beast: offered payment below required cost")

	// Arithmetic failures; checked math fails instead of wrapping.
	ErrArithmeticOverflow  = errors.New("beast: arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("beast: arithmetic underflow")

	// Integrity failures.
	ErrBeastNotFound     = errors.New("beast: record not found for expected key")
	ErrBeastExists       = errors.New("beast: record already exists for derived id")
	ErrInvalidParents    = errors.New("beast: parents must be two distinct beasts")
	ErrInvalidGeneration = errors.New("beast: generation counter exhausted")
	ErrOwnerUnchanged    = errors.New("beast: new owner equals current owner")
)
