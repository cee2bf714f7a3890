package types

// Trait layout shared by every beast. Positions 0-3 are the core traits used
// for rarity scoring and combat; 4-9 are reserved for future layers and stay
// inert in scoring.
const (
	TraitCount     = 10
	CoreTraitCount = 4
	MaxTraitValue  = 255

	TraitStrength = 0
	TraitAgility  = 1
	TraitWisdom   = 2
	TraitVitality = 3
)

// Input limits enforced at mint and breed time.
const (
	MaxNameLength = 32
	MaxURILength  = 200
)

// Ability progression bounds.
const (
	AbilitySlots    = 4
	MaxAbilityLevel = 10
)

// Combat vitals.
const (
	MaxEnergy   = 100
	HPPerVital  = 10
	MaxTurns    = 10
	BaseEnergy  = 20
	EnergyScale = 2
)

// Activity classes accepted by perform-activity. The class only flavours the
// emitted event; cooldown and reward accounting are identical across classes.
const (
	ActivityTraining   = 0
	ActivityExploring  = 1
	ActivityMeditating = 2
	MaxActivityType    = 2
)

// CombatStats tracks the per-beast combat vitals and lifetime tallies.
type CombatStats struct {
	HP           uint16 `json:"hp"`
	Energy       uint8  `json:"energy"`
	Wins         uint32 `json:"wins"`
	Losses       uint32 `json:"losses"`
	LastCombatAt int64  `json:"lastCombatAt"`
	InCombat     bool   `json:"inCombat"`
}

// BeastAccount is the mutable record behind one minted creature. It is created
// by mint or breed, mutated only through validated engine operations, and
// never destroyed; ownership transfer rewrites Owner and nothing else.
type BeastAccount struct {
	ID             [32]byte    `json:"id"`
	Owner          [20]byte    `json:"owner"`
	Name           string      `json:"name"`
	Traits         [10]byte    `json:"traits"`
	RarityScore    uint64      `json:"rarityScore"`
	LastActivityAt int64       `json:"lastActivityAt"`
	ActivityCount  uint32      `json:"activityCount"`
	PendingRewards uint64      `json:"pendingRewards"`
	Parents        [2][32]byte `json:"parents"`
	Generation     uint8       `json:"generation"`
	LastBreedingAt int64       `json:"lastBreedingAt"`
	BreedingCount  uint8       `json:"breedingCount"`
	MetadataURI    string      `json:"metadataUri"`
	Abilities      [4]uint8    `json:"abilities"`
	AbilityLevels  [4]uint8    `json:"abilityLevels"`
	Combat         CombatStats `json:"combat"`
}

// Clone returns a deep copy of the beast record. Engines mutate clones and
// persist them only after every precondition has held.
func (b *BeastAccount) Clone() *BeastAccount {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

// Genesis reports whether the beast was minted directly rather than bred.
func (b *BeastAccount) Genesis() bool {
	return b.Parents[0] == ([32]byte{}) && b.Parents[1] == ([32]byte{})
}

// CanPerformActivity reports whether the activity cooldown has elapsed since
// the last anchor. Mint sets the anchor, so the cooldown is live from birth.
func (b *BeastAccount) CanPerformActivity(now, cooldown int64) bool {
	return now-b.LastActivityAt >= cooldown
}

// CanBreed reports whether the breeding cooldown has elapsed and the breeding
// budget is not exhausted.
func (b *BeastAccount) CanBreed(now, cooldown int64, maxCount uint8) bool {
	if b.BreedingCount >= maxCount {
		return false
	}
	return now-b.LastBreedingAt >= cooldown
}

// CanEnterCombat reports whether the beast is free, rested, and holds at least
// one unlocked ability.
func (b *BeastAccount) CanEnterCombat(now, cooldown int64) bool {
	if b.Combat.InCombat {
		return false
	}
	if now-b.Combat.LastCombatAt < cooldown {
		return false
	}
	return b.HasAnyAbility()
}

// HasAbilityUnlocked reports whether the given core slot carries an ability.
func (b *BeastAccount) HasAbilityUnlocked(slot uint8) bool {
	if int(slot) >= AbilitySlots {
		return false
	}
	return b.Abilities[slot] > 0
}

// HasAnyAbility reports whether any core slot carries an ability.
func (b *BeastAccount) HasAnyAbility() bool {
	for _, a := range b.Abilities {
		if a > 0 {
			return true
		}
	}
	return false
}

// MaxHP derives the hit-point ceiling from the vitality trait.
func (b *BeastAccount) MaxHP() uint16 {
	return uint16(b.Traits[TraitVitality]) * HPPerVital
}

// ResetCombatVitals restores HP and energy to their ceilings ahead of a new
// session. Win/loss tallies and timestamps are untouched.
func (b *BeastAccount) ResetCombatVitals() {
	b.Combat.HP = b.MaxHP()
	b.Combat.Energy = MaxEnergy
}
