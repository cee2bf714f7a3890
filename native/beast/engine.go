package beast

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"zenbeasts/core/events"
	"zenbeasts/core/types"
	"zenbeasts/native/params"
	"zenbeasts/native/treasury"
)

// DefaultMetadataBase is the location minted-beast metadata URIs are derived
// under when the caller does not supply one.
const DefaultMetadataBase = "https://arweave.net/zenbeasts"

// engineState is the slice of state the engine needs: beast records plus the
// metadata URI uniqueness index.
type engineState interface {
	BeastGet(id [32]byte) (*types.BeastAccount, bool, error)
	BeastPut(b *types.BeastAccount) error
	BeastURITaken(uri string) (bool, error)
	BeastIndexURI(uri string, id [32]byte) error
}

type beastEvent struct {
	evt *types.Event
}

func (e beastEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e beastEvent) Event() *types.Event { return e.evt.Copy() }

// Engine executes every beast lifecycle operation. All methods follow the
// same shape: load, validate every precondition, then mutate and emit. A
// method that returns an error has written nothing.
type Engine struct {
	state   engineState
	gov     *params.Governor
	ledger  *treasury.Ledger
	catalog *TraitCatalog
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewEngine creates an engine with a no-op emitter and the default trait
// catalog. State, governor, and ledger must be wired before use.
func NewEngine() *Engine {
	return &Engine{
		catalog: DefaultCatalog(),
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGovernor wires the config governor consulted on every operation.
func (e *Engine) SetGovernor(gov *params.Governor) { e.gov = gov }

// SetLedger wires the treasury ledger that books costs and payouts.
func (e *Engine) SetLedger(ledger *treasury.Ledger) { e.ledger = ledger }

// SetCatalog overrides the trait-weight catalog. Passing nil restores the
// default weights.
func (e *Engine) SetCatalog(catalog *TraitCatalog) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	e.catalog = catalog
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock, primarily for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(beastEvent{evt: evt})
}

func (e *Engine) now() int64 { return e.nowFn().Unix() }

func (e *Engine) ready() error {
	if e.state == nil {
		return fmt.Errorf("beast: state not configured")
	}
	if e.gov == nil {
		return fmt.Errorf("beast: governor not configured")
	}
	if e.ledger == nil {
		return fmt.Errorf("beast: ledger not configured")
	}
	return nil
}

// mintEntropy folds the ledger clock into trait digests so two mints with the
// same caller and seed in different seconds still diverge.
func mintEntropy(now int64) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(now))
}

// Mint creates a new generation-zero beast for caller. The identifier derives
// from (caller, seed, mint index); an empty uri resolves to the canonical
// metadata location. Rewards start accruing from the mint timestamp.
func (e *Engine) Mint(caller [20]byte, name, uri string, seed uint64) (*types.BeastAccount, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, err
	}
	if len(name) > types.MaxNameLength {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrNameTooLong, len(name), types.MaxNameLength)
	}
	if len(uri) > types.MaxURILength {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrURITooLong, len(uri), types.MaxURILength)
	}

	now := e.now()
	index, err := e.gov.IncrementTotalMinted()
	if err != nil {
		return nil, err
	}
	id := DeriveBeastID(caller, seed, index)
	if _, exists, err := e.state.BeastGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %x", ErrBeastExists, id[:8])
	}
	if uri == "" {
		uri = DeriveMetadataURI(DefaultMetadataBase, index, id)
	}
	if taken, err := e.state.BeastURITaken(uri); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateURI, uri)
	}

	traits, rarity, err := GenerateTraits(seed, caller, mintEntropy(now), e.catalog)
	if err != nil {
		return nil, err
	}
	b := &types.BeastAccount{
		ID:             id,
		Owner:          caller,
		Name:           name,
		Traits:         traits,
		RarityScore:    rarity,
		LastActivityAt: now,
		MetadataURI:    uri,
	}
	b.ResetCombatVitals()

	if err := e.state.BeastPut(b); err != nil {
		return nil, err
	}
	if err := e.state.BeastIndexURI(uri, id); err != nil {
		return nil, err
	}
	e.emit(NewMintedEvent(b, cfg.RarityThresholds, now))
	return b.Clone(), nil
}

// PerformActivity runs one cooldown-gated activity: rewards earned since the
// last anchor are banked into PendingRewards and the anchor moves to now.
// Returns the updated beast and the rewards earned by this activity.
func (e *Engine) PerformActivity(caller [20]byte, id [32]byte, activityType uint8) (*types.BeastAccount, uint64, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, 0, err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return nil, 0, err
	}
	if activityType > types.MaxActivityType {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidActivityType, activityType)
	}
	if b.Owner != caller {
		return nil, 0, ErrNotOwner
	}
	now := e.now()
	if !b.CanPerformActivity(now, cfg.ActivityCooldown) {
		remaining := CooldownRemaining(b.LastActivityAt, now, cfg.ActivityCooldown)
		return nil, 0, fmt.Errorf("%w: %ds remaining", ErrCooldownActive, remaining)
	}

	earned, err := AccrueRewards(b.LastActivityAt, now, cfg.RewardRate)
	if err != nil {
		return nil, 0, err
	}
	pending, err := checkedAdd(b.PendingRewards, earned)
	if err != nil {
		return nil, 0, err
	}
	b.PendingRewards = pending
	b.LastActivityAt = now
	if b.ActivityCount < math.MaxUint32 {
		b.ActivityCount++
	}

	if err := e.state.BeastPut(b); err != nil {
		return nil, 0, err
	}
	e.emit(NewActivityEvent(b, activityType, earned, now))
	return b.Clone(), earned, nil
}

// ClaimRewards pays out everything the beast has earned: the banked pending
// amount plus whatever accrued since the last anchor. The payout comes out of
// the treasury; the anchor moves to now so nothing is counted twice.
func (e *Engine) ClaimRewards(caller [20]byte, id [32]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return 0, err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return 0, err
	}
	if b.Owner != caller {
		return 0, ErrNotOwner
	}
	now := e.now()
	accrued, err := AccrueRewards(b.LastActivityAt, now, cfg.RewardRate)
	if err != nil {
		return 0, err
	}
	total, err := checkedAdd(b.PendingRewards, accrued)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrNoRewardsToClaim
	}
	if err := e.ledger.Payout(cfg.Treasury, caller, total); err != nil {
		return 0, err
	}
	b.PendingRewards = 0
	b.LastActivityAt = now
	if err := e.state.BeastPut(b); err != nil {
		return 0, err
	}
	e.emit(NewRewardsClaimedEvent(b, caller, total, now))
	return total, nil
}

// UpgradeTrait raises one core trait by a single point. Exactly the quoted
// cost settles against the payer with the configured burn split; offering
// more than the cost does not charge more. Returns the updated beast and the
// cost paid.
func (e *Engine) UpgradeTrait(caller [20]byte, id [32]byte, traitIndex uint8, payment uint64) (*types.BeastAccount, uint64, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, 0, err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return nil, 0, err
	}
	if b.Owner != caller {
		return nil, 0, ErrNotOwner
	}
	if traitIndex >= types.CoreTraitCount {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidTraitIndex, traitIndex)
	}
	current := b.Traits[traitIndex]
	if current >= types.MaxTraitValue {
		return nil, 0, ErrTraitMaxReached
	}
	cost, err := UpgradeCost(current, cfg.UpgradeBaseCost, cfg.UpgradeScalingFactor)
	if err != nil {
		return nil, 0, err
	}
	if payment < cost {
		return nil, 0, fmt.Errorf("%w: need %d, offered %d", ErrInsufficientPayment, cost, payment)
	}
	if _, _, err := e.ledger.Collect(caller, cfg.Treasury, cost, cfg.BurnPercentage); err != nil {
		return nil, 0, err
	}

	b.Traits[traitIndex] = current + 1
	rarity, err := Score(b.Traits)
	if err != nil {
		return nil, 0, err
	}
	b.RarityScore = rarity
	if err := e.state.BeastPut(b); err != nil {
		return nil, 0, err
	}
	now := e.now()
	e.emit(NewTraitUpgradedEvent(b, traitIndex, current, current+1, cost, now))
	return b.Clone(), cost, nil
}

// Breed creates an offspring from two beasts the caller owns. The entire
// offered payment settles with the burn split, not just the quoted cost, so
// callers overpay at their own expense. The offspring inherits averaged
// traits with a deterministic variation on the core slots.
func (e *Engine) Breed(caller [20]byte, parentA, parentB [32]byte, name, uri string, seed, payment uint64) (*types.BeastAccount, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, err
	}
	if len(name) > types.MaxNameLength {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrNameTooLong, len(name), types.MaxNameLength)
	}
	if len(uri) > types.MaxURILength {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrURITooLong, len(uri), types.MaxURILength)
	}
	pa, err := e.mustGet(parentA)
	if err != nil {
		return nil, err
	}
	pb, err := e.mustGet(parentB)
	if err != nil {
		return nil, err
	}
	if pa.Owner != caller || pb.Owner != caller {
		return nil, ErrNotOwner
	}
	if parentA == parentB {
		return nil, ErrInvalidParents
	}
	now := e.now()
	for _, parent := range []*types.BeastAccount{pa, pb} {
		if now-parent.LastBreedingAt < cfg.BreedingCooldown {
			remaining := CooldownRemaining(parent.LastBreedingAt, now, cfg.BreedingCooldown)
			return nil, fmt.Errorf("%w: %x has %ds remaining", ErrBreedingCooldownActive, parent.ID[:8], remaining)
		}
		if parent.BreedingCount >= cfg.MaxBreedingCount {
			return nil, fmt.Errorf("%w: %x bred %d times", ErrMaxBreedingReached, parent.ID[:8], parent.BreedingCount)
		}
	}
	maxGen := pa.Generation
	if pb.Generation > maxGen {
		maxGen = pb.Generation
	}
	if maxGen == math.MaxUint8 {
		return nil, ErrInvalidGeneration
	}
	cost, err := BreedingCost(cfg.BreedingBaseCost, cfg.GenerationMultiplier, maxGen)
	if err != nil {
		return nil, err
	}
	if payment < cost {
		return nil, fmt.Errorf("%w: need %d, offered %d", ErrInsufficientPayment, cost, payment)
	}

	index, err := e.gov.IncrementTotalMinted()
	if err != nil {
		return nil, err
	}
	childID := DeriveBeastID(caller, seed, index)
	if _, exists, err := e.state.BeastGet(childID); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %x", ErrBeastExists, childID[:8])
	}
	if uri == "" {
		uri = DeriveMetadataURI(DefaultMetadataBase, index, childID)
	}
	if taken, err := e.state.BeastURITaken(uri); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateURI, uri)
	}

	if _, _, err := e.ledger.Collect(caller, cfg.Treasury, payment, cfg.BurnPercentage); err != nil {
		return nil, err
	}

	mixedSeed := seed ^ uint64(now)
	traits, rarity, err := BreedTraits(mixedSeed, pa.Traits, pb.Traits)
	if err != nil {
		return nil, err
	}
	child := &types.BeastAccount{
		ID:             childID,
		Owner:          caller,
		Name:           name,
		Traits:         traits,
		RarityScore:    rarity,
		LastActivityAt: now,
		Parents:        [2][32]byte{parentA, parentB},
		Generation:     maxGen + 1,
		MetadataURI:    uri,
	}
	child.ResetCombatVitals()

	pa.BreedingCount++
	pa.LastBreedingAt = now
	pb.BreedingCount++
	pb.LastBreedingAt = now

	if err := e.state.BeastPut(child); err != nil {
		return nil, err
	}
	if err := e.state.BeastIndexURI(uri, childID); err != nil {
		return nil, err
	}
	if err := e.state.BeastPut(pa); err != nil {
		return nil, err
	}
	if err := e.state.BeastPut(pb); err != nil {
		return nil, err
	}
	e.emit(NewMintedEvent(child, cfg.RarityThresholds, now))
	e.emit(NewBredEvent(parentA, parentB, child, payment, now))
	return child.Clone(), nil
}

// UpdateOwner hands a beast to a new owner. Nothing else changes: pending
// rewards, cooldown anchors, and combat tallies travel with the beast.
func (e *Engine) UpdateOwner(caller [20]byte, id [32]byte, newOwner [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return err
	}
	if b.Owner != caller {
		return ErrNotOwner
	}
	if newOwner == b.Owner {
		return ErrOwnerUnchanged
	}
	b.Owner = newOwner
	if err := e.state.BeastPut(b); err != nil {
		return err
	}
	e.emit(NewTransferredEvent(b, caller, newOwner, e.now()))
	return nil
}

// Repair lets the authority overwrite a rarity score that drifted from the
// stored traits. The corrected value must equal the recomputed trait sum;
// repair is a consistency fix, not a balance lever.
func (e *Engine) Repair(caller [20]byte, id [32]byte, corrected uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	b, err := e.mustGet(id)
	if err != nil {
		return err
	}
	recomputed, err := Score(b.Traits)
	if err != nil {
		return err
	}
	if corrected != recomputed {
		return fmt.Errorf("%w: traits sum to %d, corrected value %d", ErrInvalidRarityScore, recomputed, corrected)
	}
	old := b.RarityScore
	b.RarityScore = corrected
	if err := e.state.BeastPut(b); err != nil {
		return err
	}
	e.emit(NewRepairedEvent(b, old, corrected, caller, e.now()))
	return nil
}

// UnlockAbility binds an ability to one of the four core trait slots. The
// flat unlock cost settles with a fixed even burn split and the ability
// starts at level one.
func (e *Engine) UnlockAbility(caller [20]byte, id [32]byte, traitIndex, abilityID uint8, payment uint64) (*types.BeastAccount, uint64, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, 0, err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return nil, 0, err
	}
	if b.Owner != caller {
		return nil, 0, ErrNotOwner
	}
	if traitIndex >= types.AbilitySlots {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidTraitIndex, traitIndex)
	}
	if abilityID == 0 {
		return nil, 0, ErrInvalidAbilityID
	}
	if b.Abilities[traitIndex] != 0 {
		return nil, 0, ErrAbilityAlreadyUnlocked
	}
	cost := cfg.AbilityUnlockCost
	if payment < cost {
		return nil, 0, fmt.Errorf("%w: need %d, offered %d", ErrInsufficientPayment, cost, payment)
	}
	if _, _, err := e.ledger.CollectEven(caller, cfg.Treasury, cost); err != nil {
		return nil, 0, err
	}

	b.Abilities[traitIndex] = abilityID
	b.AbilityLevels[traitIndex] = 1
	if err := e.state.BeastPut(b); err != nil {
		return nil, 0, err
	}
	e.emit(NewAbilityUnlockedEvent(b, traitIndex, abilityID, cost, e.now()))
	return b.Clone(), cost, nil
}

// UpgradeAbility raises an unlocked ability one level. The cost scales with
// the current level and settles with the fixed even burn split.
func (e *Engine) UpgradeAbility(caller [20]byte, id [32]byte, traitIndex uint8, payment uint64) (*types.BeastAccount, uint64, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, 0, err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return nil, 0, err
	}
	if b.Owner != caller {
		return nil, 0, ErrNotOwner
	}
	if traitIndex >= types.AbilitySlots {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidTraitIndex, traitIndex)
	}
	if b.Abilities[traitIndex] == 0 {
		return nil, 0, ErrAbilityNotUnlocked
	}
	level := b.AbilityLevels[traitIndex]
	if level >= types.MaxAbilityLevel {
		return nil, 0, ErrAbilityMaxLevel
	}
	cost, err := AbilityUpgradeCost(cfg.AbilityUpgradeCost, level)
	if err != nil {
		return nil, 0, err
	}
	if payment < cost {
		return nil, 0, fmt.Errorf("%w: need %d, offered %d", ErrInsufficientPayment, cost, payment)
	}
	if _, _, err := e.ledger.CollectEven(caller, cfg.Treasury, cost); err != nil {
		return nil, 0, err
	}

	b.AbilityLevels[traitIndex] = level + 1
	if err := e.state.BeastPut(b); err != nil {
		return nil, 0, err
	}
	e.emit(NewAbilityUpgradedEvent(b, traitIndex, level, level+1, cost, e.now()))
	return b.Clone(), cost, nil
}

// Get returns a copy of the beast record.
func (e *Engine) Get(id [32]byte) (*types.BeastAccount, error) {
	if e.state == nil {
		return nil, fmt.Errorf("beast: state not configured")
	}
	b, err := e.mustGet(id)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// ClaimableRewards quotes the amount a claim would pay out right now.
func (e *Engine) ClaimableRewards(id [32]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return 0, err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return 0, err
	}
	accrued, err := AccrueRewards(b.LastActivityAt, e.now(), cfg.RewardRate)
	if err != nil {
		return 0, err
	}
	return checkedAdd(b.PendingRewards, accrued)
}

// PreviewUpgrade quotes the cost of upgrading one core trait without touching
// state. The quote uses the same pricing function the engine charges with.
func (e *Engine) PreviewUpgrade(id [32]byte, traitIndex uint8) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return 0, err
	}
	b, err := e.mustGet(id)
	if err != nil {
		return 0, err
	}
	if traitIndex >= types.CoreTraitCount {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTraitIndex, traitIndex)
	}
	if b.Traits[traitIndex] >= types.MaxTraitValue {
		return 0, ErrTraitMaxReached
	}
	return UpgradeCost(b.Traits[traitIndex], cfg.UpgradeBaseCost, cfg.UpgradeScalingFactor)
}

// PreviewBreeding quotes the cost of breeding two beasts without touching
// state or checking cooldowns; callers get the price even while a cooldown
// still runs.
func (e *Engine) PreviewBreeding(parentA, parentB [32]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return 0, err
	}
	pa, err := e.mustGet(parentA)
	if err != nil {
		return 0, err
	}
	pb, err := e.mustGet(parentB)
	if err != nil {
		return 0, err
	}
	maxGen := pa.Generation
	if pb.Generation > maxGen {
		maxGen = pb.Generation
	}
	return BreedingCost(cfg.BreedingBaseCost, cfg.GenerationMultiplier, maxGen)
}

func (e *Engine) mustGet(id [32]byte) (*types.BeastAccount, error) {
	b, ok, err := e.state.BeastGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrBeastNotFound, id[:8])
	}
	return b, nil
}
