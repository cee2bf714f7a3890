package params

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized       = errors.New("params: economy config not initialized")
	ErrAlreadyInitialized   = errors.New("params: economy config already initialized")
	ErrUnauthorized         = errors.New("params: caller is not the authority")
	ErrInvalidConfiguration = errors.New("params: invalid configuration")
	ErrUpdatePending        = errors.New("params: a config change is already pending activation")
	ErrInvalidDelay         = errors.New("params: critical changes require a positive delay")
	ErrEmptyUpdate          = errors.New("params: update carries no changes")
	ErrArithmeticOverflow   = errors.New("params: arithmetic overflow")
)

// DefaultRarityThresholds are the stock tier boundaries, scanned descending:
// a score at or above the k-th threshold reaches the k-th tier, so Legendary
// demands a perfect 1020.
var DefaultRarityThresholds = [5]uint64{400, 600, 800, 950, 1020}

// Config is the single global economy record. Every operation reads it; only
// initialize, update, and pending-change activation write it.
type Config struct {
	Authority   [20]byte `json:"authority"`
	Treasury    [20]byte `json:"treasury"`
	RewardToken string   `json:"rewardToken"`

	ActivityCooldown int64 `json:"activityCooldown"`
	BreedingCooldown int64 `json:"breedingCooldown"`
	MaxBreedingCount uint8 `json:"maxBreedingCount"`

	UpgradeBaseCost      uint64 `json:"upgradeBaseCost"`
	UpgradeScalingFactor uint64 `json:"upgradeScalingFactor"`
	BreedingBaseCost     uint64 `json:"breedingBaseCost"`
	GenerationMultiplier uint64 `json:"generationMultiplier"`
	RewardRate           uint64 `json:"rewardRate"`
	BurnPercentage       uint8  `json:"burnPercentage"`

	RarityThresholds [5]uint64 `json:"rarityThresholds"`

	AbilityUnlockCost  uint64 `json:"abilityUnlockCost"`
	AbilityUpgradeCost uint64 `json:"abilityUpgradeCost"`

	CombatCooldown         int64  `json:"combatCooldown"`
	MinCombatWager         uint64 `json:"minCombatWager"`
	MaxCombatWager         uint64 `json:"maxCombatWager"`
	CombatTurnTimeout      int64  `json:"combatTurnTimeout"`
	CombatWinnerPercentage uint8  `json:"combatWinnerPercentage"`

	TotalMinted uint64 `json:"totalMinted"`

	Pending *PendingUpdate `json:"pending,omitempty"`
}

// PendingUpdate is the single scheduled critical change. At most one exists at
// a time; it is applied and cleared by the first config read at or after the
// activation time.
type PendingUpdate struct {
	Changes        Changes `json:"changes"`
	ActivationTime int64   `json:"activationTime"`
}

// Clone returns a deep copy so callers can mutate without racing readers.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Pending != nil {
		pending := *c.Pending
		pending.Changes = c.Pending.Changes.clone()
		clone.Pending = &pending
	}
	return &clone
}

// Normalize fills unset defaults: zero thresholds become the stock tiers.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.RarityThresholds == ([5]uint64{}) {
		c.RarityThresholds = DefaultRarityThresholds
	}
}

// Validate enforces the acceptable range of every parameter. Zero-value
// authority or treasury addresses are rejected because every operation
// resolves against them.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfiguration)
	}
	if c.Authority == ([20]byte{}) {
		return fmt.Errorf("%w: authority not set", ErrInvalidConfiguration)
	}
	if c.Treasury == ([20]byte{}) {
		return fmt.Errorf("%w: treasury not set", ErrInvalidConfiguration)
	}
	if c.ActivityCooldown <= 0 || c.BreedingCooldown <= 0 {
		return fmt.Errorf("%w: cooldowns must be positive", ErrInvalidConfiguration)
	}
	if c.UpgradeBaseCost == 0 || c.BreedingBaseCost == 0 {
		return fmt.Errorf("%w: base costs must be positive", ErrInvalidConfiguration)
	}
	if c.RewardRate == 0 || c.UpgradeScalingFactor == 0 {
		return fmt.Errorf("%w: reward rate and scaling factor must be positive", ErrInvalidConfiguration)
	}
	if c.BurnPercentage > 100 {
		return fmt.Errorf("%w: burn percentage must be 0-100", ErrInvalidConfiguration)
	}
	if c.CombatWinnerPercentage > 100 {
		return fmt.Errorf("%w: combat winner percentage must be 0-100", ErrInvalidConfiguration)
	}
	if c.MinCombatWager > c.MaxCombatWager {
		return fmt.Errorf("%w: min combat wager exceeds max", ErrInvalidConfiguration)
	}
	if c.CombatTurnTimeout <= 0 || c.CombatCooldown < 0 {
		return fmt.Errorf("%w: combat timings out of range", ErrInvalidConfiguration)
	}
	for i := 1; i < len(c.RarityThresholds); i++ {
		if c.RarityThresholds[i] <= c.RarityThresholds[i-1] {
			return fmt.Errorf("%w: rarity thresholds must be strictly ascending", ErrInvalidConfiguration)
		}
	}
	return nil
}

// Changes is a sparse delta over the updatable parameters; nil fields are
// untouched. Canonical snake_case field names flow into events.
type Changes struct {
	ActivityCooldown *int64 `json:"activityCooldown,omitempty"`
	BreedingCooldown *int64 `json:"breedingCooldown,omitempty"`
	MaxBreedingCount *uint8 `json:"maxBreedingCount,omitempty"`

	UpgradeBaseCost      *uint64 `json:"upgradeBaseCost,omitempty"`
	UpgradeScalingFactor *uint64 `json:"upgradeScalingFactor,omitempty"`
	BreedingBaseCost     *uint64 `json:"breedingBaseCost,omitempty"`
	GenerationMultiplier *uint64 `json:"generationMultiplier,omitempty"`
	RewardRate           *uint64 `json:"rewardRate,omitempty"`
	BurnPercentage       *uint8  `json:"burnPercentage,omitempty"`

	RarityThresholds *[5]uint64 `json:"rarityThresholds,omitempty"`

	AbilityUnlockCost  *uint64 `json:"abilityUnlockCost,omitempty"`
	AbilityUpgradeCost *uint64 `json:"abilityUpgradeCost,omitempty"`

	CombatCooldown         *int64  `json:"combatCooldown,omitempty"`
	MinCombatWager         *uint64 `json:"minCombatWager,omitempty"`
	MaxCombatWager         *uint64 `json:"maxCombatWager,omitempty"`
	CombatTurnTimeout      *int64  `json:"combatTurnTimeout,omitempty"`
	CombatWinnerPercentage *uint8  `json:"combatWinnerPercentage,omitempty"`
}

// FieldChange describes one applied parameter mutation for event emission.
type FieldChange struct {
	Name string
	Old  string
	New  string
}

// Empty reports whether the delta touches nothing.
func (ch Changes) Empty() bool {
	return ch.ActivityCooldown == nil && ch.BreedingCooldown == nil &&
		ch.MaxBreedingCount == nil && ch.UpgradeBaseCost == nil &&
		ch.UpgradeScalingFactor == nil && ch.BreedingBaseCost == nil &&
		ch.GenerationMultiplier == nil && ch.RewardRate == nil &&
		ch.BurnPercentage == nil && ch.RarityThresholds == nil &&
		ch.AbilityUnlockCost == nil && ch.AbilityUpgradeCost == nil &&
		ch.CombatCooldown == nil && ch.MinCombatWager == nil &&
		ch.MaxCombatWager == nil && ch.CombatTurnTimeout == nil &&
		ch.CombatWinnerPercentage == nil
}

// Split separates the delta into its critical (timelocked) and immediate
// halves. The rule: anything that re-prices a token flow — rates, costs,
// percentages, wager bounds — takes the delay; durations and counts apply
// instantly.
func (ch Changes) Split() (critical Changes, immediate Changes) {
	critical = Changes{
		UpgradeBaseCost:        ch.UpgradeBaseCost,
		UpgradeScalingFactor:   ch.UpgradeScalingFactor,
		BreedingBaseCost:       ch.BreedingBaseCost,
		GenerationMultiplier:   ch.GenerationMultiplier,
		RewardRate:             ch.RewardRate,
		BurnPercentage:         ch.BurnPercentage,
		AbilityUnlockCost:      ch.AbilityUnlockCost,
		AbilityUpgradeCost:     ch.AbilityUpgradeCost,
		MinCombatWager:         ch.MinCombatWager,
		MaxCombatWager:         ch.MaxCombatWager,
		CombatWinnerPercentage: ch.CombatWinnerPercentage,
	}
	immediate = Changes{
		ActivityCooldown:  ch.ActivityCooldown,
		BreedingCooldown:  ch.BreedingCooldown,
		MaxBreedingCount:  ch.MaxBreedingCount,
		RarityThresholds:  ch.RarityThresholds,
		CombatCooldown:    ch.CombatCooldown,
		CombatTurnTimeout: ch.CombatTurnTimeout,
	}
	return critical, immediate
}

func (ch Changes) clone() Changes {
	out := Changes{}
	if ch.ActivityCooldown != nil {
		v := *ch.ActivityCooldown
		out.ActivityCooldown = &v
	}
	if ch.BreedingCooldown != nil {
		v := *ch.BreedingCooldown
		out.BreedingCooldown = &v
	}
	if ch.MaxBreedingCount != nil {
		v := *ch.MaxBreedingCount
		out.MaxBreedingCount = &v
	}
	if ch.UpgradeBaseCost != nil {
		v := *ch.UpgradeBaseCost
		out.UpgradeBaseCost = &v
	}
	if ch.UpgradeScalingFactor != nil {
		v := *ch.UpgradeScalingFactor
		out.UpgradeScalingFactor = &v
	}
	if ch.BreedingBaseCost != nil {
		v := *ch.BreedingBaseCost
		out.BreedingBaseCost = &v
	}
	if ch.GenerationMultiplier != nil {
		v := *ch.GenerationMultiplier
		out.GenerationMultiplier = &v
	}
	if ch.RewardRate != nil {
		v := *ch.RewardRate
		out.RewardRate = &v
	}
	if ch.BurnPercentage != nil {
		v := *ch.BurnPercentage
		out.BurnPercentage = &v
	}
	if ch.RarityThresholds != nil {
		v := *ch.RarityThresholds
		out.RarityThresholds = &v
	}
	if ch.AbilityUnlockCost != nil {
		v := *ch.AbilityUnlockCost
		out.AbilityUnlockCost = &v
	}
	if ch.AbilityUpgradeCost != nil {
		v := *ch.AbilityUpgradeCost
		out.AbilityUpgradeCost = &v
	}
	if ch.CombatCooldown != nil {
		v := *ch.CombatCooldown
		out.CombatCooldown = &v
	}
	if ch.MinCombatWager != nil {
		v := *ch.MinCombatWager
		out.MinCombatWager = &v
	}
	if ch.MaxCombatWager != nil {
		v := *ch.MaxCombatWager
		out.MaxCombatWager = &v
	}
	if ch.CombatTurnTimeout != nil {
		v := *ch.CombatTurnTimeout
		out.CombatTurnTimeout = &v
	}
	if ch.CombatWinnerPercentage != nil {
		v := *ch.CombatWinnerPercentage
		out.CombatWinnerPercentage = &v
	}
	return out
}
