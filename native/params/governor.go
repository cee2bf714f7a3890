package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"zenbeasts/core/events"
)

type govState interface {
	EconomyConfig() (*Config, bool, error)
	SetEconomyConfig(cfg *Config) error
}

// Governor owns the economy config lifecycle: genesis initialization,
// authority-gated updates, and lazy activation of timelocked changes.
type Governor struct {
	state   govState
	emitter events.Emitter
	nowFn   func() time.Time
}

func NewGovernor() *Governor {
	return &Governor{emitter: events.NoopEmitter{}, nowFn: time.Now}
}

// SetState wires the persistence backend used for config reads and writes.
func (g *Governor) SetState(state govState) { g.state = state }

// SetEmitter wires the sink for config events. Passing nil restores the
// no-op emitter.
func (g *Governor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

// SetNowFunc overrides the governor clock, primarily for tests.
func (g *Governor) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	g.nowFn = now
}

func (g *Governor) emit(evt events.Event) {
	if g.emitter == nil || evt == nil {
		return
	}
	g.emitter.Emit(evt)
}

func (g *Governor) now() int64 {
	if g.nowFn == nil {
		return time.Now().Unix()
	}
	return g.nowFn().Unix()
}

// Initialize seeds the economy record exactly once. The stored config starts
// with a zero mint counter and no pending update regardless of input.
func (g *Governor) Initialize(cfg *Config) error {
	if g.state == nil {
		return fmt.Errorf("params: state not configured")
	}
	if _, ok, err := g.state.EconomyConfig(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	seeded := cfg.Clone()
	if seeded == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfiguration)
	}
	seeded.Normalize()
	seeded.TotalMinted = 0
	seeded.Pending = nil
	if err := seeded.Validate(); err != nil {
		return err
	}
	if err := g.state.SetEconomyConfig(seeded); err != nil {
		return err
	}
	g.emit(newInitializedEvent(seeded, g.now()))
	return nil
}

// Effective returns the config that governs operations right now. If a
// pending update is due it is applied, persisted, and announced before the
// snapshot is returned; callers therefore never see a stale critical value
// past its activation time.
func (g *Governor) Effective() (*Config, error) {
	if g.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	cfg, ok, err := g.state.EconomyConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	now := g.now()
	if cfg.Pending != nil && now >= cfg.Pending.ActivationTime {
		applied, err := applyChanges(cfg, cfg.Pending.Changes)
		if err != nil {
			return nil, err
		}
		cfg.Pending = nil
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := g.state.SetEconomyConfig(cfg); err != nil {
			return nil, err
		}
		for _, fc := range applied {
			g.emit(newUpdatedEvent(fc, cfg.Authority, now))
		}
	}
	return cfg.Clone(), nil
}

// Update applies a parameter delta on behalf of caller. Immediate parameters
// take effect in this call; critical parameters are scheduled delay seconds
// out and reject stacking on an existing pending change.
func (g *Governor) Update(caller [20]byte, changes Changes, delay int64) error {
	if g.state == nil {
		return fmt.Errorf("params: state not configured")
	}
	cfg, ok, err := g.state.EconomyConfig()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	if changes.Empty() {
		return ErrEmptyUpdate
	}

	now := g.now()
	critical, immediate := changes.Split()
	hasCritical := !critical.Empty()
	if hasCritical {
		if cfg.Pending != nil {
			return ErrUpdatePending
		}
		if delay <= 0 {
			return ErrInvalidDelay
		}
		// Validate the post-activation shape up front so a bad value cannot
		// poison the config at activation time.
		trial := cfg.Clone()
		if _, err := applyChanges(trial, critical); err != nil {
			return err
		}
		trial.Pending = nil
		if err := trial.Validate(); err != nil {
			return err
		}
	}

	applied, err := applyChanges(cfg, immediate)
	if err != nil {
		return err
	}
	if hasCritical {
		activation, overflow := addInt64(now, delay)
		if overflow {
			return fmt.Errorf("%w: activation time", ErrArithmeticOverflow)
		}
		cfg.Pending = &PendingUpdate{Changes: critical.clone(), ActivationTime: activation}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := g.state.SetEconomyConfig(cfg); err != nil {
		return err
	}
	for _, fc := range applied {
		g.emit(newUpdatedEvent(fc, caller, now))
	}
	if hasCritical {
		g.emit(newScheduledEvent(cfg.Pending, caller, now))
	}
	return nil
}

// TransferAuthority hands governance to a new address. The change is
// immediate: a compromised authority that could wait out a timelock could
// equally cancel it.
func (g *Governor) TransferAuthority(caller, next [20]byte) error {
	if g.state == nil {
		return fmt.Errorf("params: state not configured")
	}
	cfg, ok, err := g.state.EconomyConfig()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	if next == ([20]byte{}) {
		return fmt.Errorf("%w: authority not set", ErrInvalidConfiguration)
	}
	if next == cfg.Authority {
		return fmt.Errorf("%w: authority unchanged", ErrInvalidConfiguration)
	}
	old := cfg.Authority
	cfg.Authority = next
	if err := g.state.SetEconomyConfig(cfg); err != nil {
		return err
	}
	g.emit(newAuthorityTransferredEvent(old, next, g.now()))
	return nil
}

// IncrementTotalMinted bumps the mint counter and returns the index assigned
// to the beast being minted (the pre-increment value).
func (g *Governor) IncrementTotalMinted() (uint64, error) {
	if g.state == nil {
		return 0, fmt.Errorf("params: state not configured")
	}
	cfg, ok, err := g.state.EconomyConfig()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotInitialized
	}
	index := cfg.TotalMinted
	if index == math.MaxUint64 {
		return 0, fmt.Errorf("%w: total minted", ErrArithmeticOverflow)
	}
	cfg.TotalMinted = index + 1
	if err := g.state.SetEconomyConfig(cfg); err != nil {
		return 0, err
	}
	return index, nil
}

func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if b > 0 && sum < a {
		return 0, true
	}
	if b < 0 && sum > a {
		return 0, true
	}
	return sum, false
}

// applyChanges mutates cfg in place and reports each touched field with its
// old and new rendering for event emission.
func applyChanges(cfg *Config, ch Changes) ([]FieldChange, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfiguration)
	}
	var applied []FieldChange
	record := func(name, old, next string) {
		applied = append(applied, FieldChange{Name: name, Old: old, New: next})
	}
	if ch.ActivityCooldown != nil {
		record("activity_cooldown", formatInt(cfg.ActivityCooldown), formatInt(*ch.ActivityCooldown))
		cfg.ActivityCooldown = *ch.ActivityCooldown
	}
	if ch.BreedingCooldown != nil {
		record("breeding_cooldown", formatInt(cfg.BreedingCooldown), formatInt(*ch.BreedingCooldown))
		cfg.BreedingCooldown = *ch.BreedingCooldown
	}
	if ch.MaxBreedingCount != nil {
		record("max_breeding_count", formatUint(uint64(cfg.MaxBreedingCount)), formatUint(uint64(*ch.MaxBreedingCount)))
		cfg.MaxBreedingCount = *ch.MaxBreedingCount
	}
	if ch.UpgradeBaseCost != nil {
		record("upgrade_base_cost", formatUint(cfg.UpgradeBaseCost), formatUint(*ch.UpgradeBaseCost))
		cfg.UpgradeBaseCost = *ch.UpgradeBaseCost
	}
	if ch.UpgradeScalingFactor != nil {
		record("upgrade_scaling_factor", formatUint(cfg.UpgradeScalingFactor), formatUint(*ch.UpgradeScalingFactor))
		cfg.UpgradeScalingFactor = *ch.UpgradeScalingFactor
	}
	if ch.BreedingBaseCost != nil {
		record("breeding_base_cost", formatUint(cfg.BreedingBaseCost), formatUint(*ch.BreedingBaseCost))
		cfg.BreedingBaseCost = *ch.BreedingBaseCost
	}
	if ch.GenerationMultiplier != nil {
		record("generation_multiplier", formatUint(cfg.GenerationMultiplier), formatUint(*ch.GenerationMultiplier))
		cfg.GenerationMultiplier = *ch.GenerationMultiplier
	}
	if ch.RewardRate != nil {
		record("reward_rate", formatUint(cfg.RewardRate), formatUint(*ch.RewardRate))
		cfg.RewardRate = *ch.RewardRate
	}
	if ch.BurnPercentage != nil {
		record("burn_percentage", formatUint(uint64(cfg.BurnPercentage)), formatUint(uint64(*ch.BurnPercentage)))
		cfg.BurnPercentage = *ch.BurnPercentage
	}
	if ch.RarityThresholds != nil {
		record("rarity_thresholds", formatThresholds(cfg.RarityThresholds), formatThresholds(*ch.RarityThresholds))
		cfg.RarityThresholds = *ch.RarityThresholds
	}
	if ch.AbilityUnlockCost != nil {
		record("ability_unlock_cost", formatUint(cfg.AbilityUnlockCost), formatUint(*ch.AbilityUnlockCost))
		cfg.AbilityUnlockCost = *ch.AbilityUnlockCost
	}
	if ch.AbilityUpgradeCost != nil {
		record("ability_upgrade_cost", formatUint(cfg.AbilityUpgradeCost), formatUint(*ch.AbilityUpgradeCost))
		cfg.AbilityUpgradeCost = *ch.AbilityUpgradeCost
	}
	if ch.CombatCooldown != nil {
		record("combat_cooldown", formatInt(cfg.CombatCooldown), formatInt(*ch.CombatCooldown))
		cfg.CombatCooldown = *ch.CombatCooldown
	}
	if ch.MinCombatWager != nil {
		record("min_combat_wager", formatUint(cfg.MinCombatWager), formatUint(*ch.MinCombatWager))
		cfg.MinCombatWager = *ch.MinCombatWager
	}
	if ch.MaxCombatWager != nil {
		record("max_combat_wager", formatUint(cfg.MaxCombatWager), formatUint(*ch.MaxCombatWager))
		cfg.MaxCombatWager = *ch.MaxCombatWager
	}
	if ch.CombatTurnTimeout != nil {
		record("combat_turn_timeout", formatInt(cfg.CombatTurnTimeout), formatInt(*ch.CombatTurnTimeout))
		cfg.CombatTurnTimeout = *ch.CombatTurnTimeout
	}
	if ch.CombatWinnerPercentage != nil {
		record("combat_winner_percentage", formatUint(uint64(cfg.CombatWinnerPercentage)), formatUint(uint64(*ch.CombatWinnerPercentage)))
		cfg.CombatWinnerPercentage = *ch.CombatWinnerPercentage
	}
	return applied, nil
}

// changedNames lists the snake_case parameter names a delta touches, in the
// same order applyChanges would report them.
func changedNames(ch Changes) []string {
	cfg := &Config{}
	applied, err := applyChanges(cfg, ch)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(applied))
	for _, fc := range applied {
		names = append(names, fc.Name)
	}
	return names
}

func formatInt(v int64) string   { return strconv.FormatInt(v, 10) }
func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatThresholds(t [5]uint64) string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, ",")
}
