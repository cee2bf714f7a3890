package params

import (
	"errors"
	"testing"
	"time"

	"zenbeasts/core/events"
)

type mockGovState struct {
	cfg *Config
}

func (m *mockGovState) EconomyConfig() (*Config, bool, error) {
	if m.cfg == nil {
		return nil, false, nil
	}
	return m.cfg.Clone(), true, nil
}

func (m *mockGovState) SetEconomyConfig(cfg *Config) error {
	m.cfg = cfg.Clone()
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *captureEmitter) typed(eventType string) []configEvent {
	var out []configEvent
	for _, evt := range c.events {
		ce, ok := evt.(configEvent)
		if !ok {
			continue
		}
		if ce.EventType() == eventType {
			out = append(out, ce)
		}
	}
	return out
}

func addr(b byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = b
	}
	return a
}

func baseConfig() *Config {
	cfg := &Config{
		Authority:              addr(0xAA),
		Treasury:               addr(0xBB),
		RewardToken:            "ZEN",
		ActivityCooldown:       3600,
		BreedingCooldown:       86400,
		MaxBreedingCount:       5,
		UpgradeBaseCost:        100,
		UpgradeScalingFactor:   50,
		BreedingBaseCost:       500,
		GenerationMultiplier:   2,
		RewardRate:             10,
		BurnPercentage:         10,
		AbilityUnlockCost:      200,
		AbilityUpgradeCost:     150,
		CombatCooldown:         1800,
		MinCombatWager:         10,
		MaxCombatWager:         10000,
		CombatTurnTimeout:      300,
		CombatWinnerPercentage: 90,
	}
	cfg.Normalize()
	return cfg
}

func newTestGovernor(t *testing.T, at int64) (*Governor, *mockGovState, *captureEmitter, *int64) {
	t.Helper()
	state := &mockGovState{}
	emitter := &captureEmitter{}
	clock := at
	gov := NewGovernor()
	gov.SetState(state)
	gov.SetEmitter(emitter)
	gov.SetNowFunc(func() time.Time { return time.Unix(clock, 0) })
	return gov, state, emitter, &clock
}

func TestGovernorInitializeOnce(t *testing.T) {
	gov, state, emitter, _ := newTestGovernor(t, 1_700_000_000)

	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if state.cfg == nil {
		t.Fatalf("expected config persisted")
	}
	if state.cfg.TotalMinted != 0 || state.cfg.Pending != nil {
		t.Fatalf("expected clean genesis config, got minted=%d pending=%v", state.cfg.TotalMinted, state.cfg.Pending)
	}
	if got := emitter.typed(EventTypeConfigInitialized); len(got) != 1 {
		t.Fatalf("expected one initialized event, got %d", len(got))
	}
	if err := gov.Initialize(baseConfig()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestGovernorInitializeRejectsInvalid(t *testing.T) {
	gov, _, _, _ := newTestGovernor(t, 1_700_000_000)

	cfg := baseConfig()
	cfg.BurnPercentage = 101
	if err := gov.Initialize(cfg); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}

	cfg = baseConfig()
	cfg.Treasury = [20]byte{}
	if err := gov.Initialize(cfg); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for zero treasury, got %v", err)
	}
}

func TestGovernorEffectiveRequiresInit(t *testing.T) {
	gov, _, _, _ := newTestGovernor(t, 1_700_000_000)
	if _, err := gov.Effective(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestGovernorEffectiveReturnsClone(t *testing.T) {
	gov, state, _, _ := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	cfg, err := gov.Effective()
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	cfg.RewardRate = 999
	if state.cfg.RewardRate != 10 {
		t.Fatalf("mutating the snapshot leaked into state")
	}
}

func TestGovernorUpdateAuthorization(t *testing.T) {
	gov, _, _, _ := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	cooldown := int64(7200)
	err := gov.Update(addr(0xCC), Changes{ActivityCooldown: &cooldown}, 0)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := gov.Update(addr(0xAA), Changes{}, 0); !errors.Is(err, ErrEmptyUpdate) {
		t.Fatalf("expected ErrEmptyUpdate, got %v", err)
	}
}

func TestGovernorImmediateUpdateAppliesNow(t *testing.T) {
	gov, state, emitter, _ := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	cooldown := int64(7200)
	count := uint8(3)
	if err := gov.Update(addr(0xAA), Changes{ActivityCooldown: &cooldown, MaxBreedingCount: &count}, 0); err != nil {
		t.Fatalf("update: %v", err)
	}
	if state.cfg.ActivityCooldown != 7200 || state.cfg.MaxBreedingCount != 3 {
		t.Fatalf("immediate changes not applied: cooldown=%d count=%d", state.cfg.ActivityCooldown, state.cfg.MaxBreedingCount)
	}
	if state.cfg.Pending != nil {
		t.Fatalf("immediate-only update must not schedule anything")
	}
	updated := emitter.typed(EventTypeConfigUpdated)
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated events, got %d", len(updated))
	}
	attrs := updated[0].Event().Attributes
	if attrs["parameter"] != "activity_cooldown" || attrs["oldValue"] != "3600" || attrs["newValue"] != "7200" {
		t.Fatalf("unexpected event attributes: %+v", attrs)
	}
}

func TestGovernorCriticalUpdateIsDelayed(t *testing.T) {
	gov, state, emitter, clock := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	rate := uint64(25)
	if err := gov.Update(addr(0xAA), Changes{RewardRate: &rate}, 0); !errors.Is(err, ErrInvalidDelay) {
		t.Fatalf("expected ErrInvalidDelay for zero delay, got %v", err)
	}
	if err := gov.Update(addr(0xAA), Changes{RewardRate: &rate}, 600); err != nil {
		t.Fatalf("update: %v", err)
	}
	if state.cfg.RewardRate != 10 {
		t.Fatalf("critical change applied immediately")
	}
	if state.cfg.Pending == nil || state.cfg.Pending.ActivationTime != 1_700_000_600 {
		t.Fatalf("expected pending update at 1700000600, got %+v", state.cfg.Pending)
	}
	if got := emitter.typed(EventTypeUpdateScheduled); len(got) != 1 {
		t.Fatalf("expected one scheduled event, got %d", len(got))
	} else if got[0].Event().Attributes["parameters"] != "reward_rate" {
		t.Fatalf("unexpected scheduled parameters: %q", got[0].Event().Attributes["parameters"])
	}

	// Before the activation time nothing changes.
	*clock = 1_700_000_599
	cfg, err := gov.Effective()
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if cfg.RewardRate != 10 || cfg.Pending == nil {
		t.Fatalf("pending update activated early")
	}

	// A second critical update cannot stack on the pending one.
	burn := uint8(20)
	if err := gov.Update(addr(0xAA), Changes{BurnPercentage: &burn}, 600); !errors.Is(err, ErrUpdatePending) {
		t.Fatalf("expected ErrUpdatePending, got %v", err)
	}

	// At the activation time the read applies and announces the change.
	*clock = 1_700_000_600
	cfg, err = gov.Effective()
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if cfg.RewardRate != 25 || cfg.Pending != nil {
		t.Fatalf("pending update not applied: rate=%d pending=%v", cfg.RewardRate, cfg.Pending)
	}
	if state.cfg.RewardRate != 25 || state.cfg.Pending != nil {
		t.Fatalf("activation not persisted")
	}
	updated := emitter.typed(EventTypeConfigUpdated)
	if len(updated) != 1 {
		t.Fatalf("expected one updated event after activation, got %d", len(updated))
	}
	attrs := updated[0].Event().Attributes
	if attrs["parameter"] != "reward_rate" || attrs["oldValue"] != "10" || attrs["newValue"] != "25" {
		t.Fatalf("unexpected activation event: %+v", attrs)
	}
}

func TestGovernorMixedUpdateSplits(t *testing.T) {
	gov, state, _, _ := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	cooldown := int64(7200)
	burn := uint8(25)
	if err := gov.Update(addr(0xAA), Changes{ActivityCooldown: &cooldown, BurnPercentage: &burn}, 300); err != nil {
		t.Fatalf("update: %v", err)
	}
	if state.cfg.ActivityCooldown != 7200 {
		t.Fatalf("immediate half not applied")
	}
	if state.cfg.BurnPercentage != 10 {
		t.Fatalf("critical half applied immediately")
	}
	if state.cfg.Pending == nil || state.cfg.Pending.Changes.BurnPercentage == nil {
		t.Fatalf("critical half not scheduled: %+v", state.cfg.Pending)
	}
}

func TestGovernorCriticalUpdateValidatedUpFront(t *testing.T) {
	gov, state, _, _ := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	burn := uint8(150)
	err := gov.Update(addr(0xAA), Changes{BurnPercentage: &burn}, 300)
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if state.cfg.Pending != nil {
		t.Fatalf("invalid critical change must not be scheduled")
	}
}

func TestGovernorTransferAuthority(t *testing.T) {
	gov, state, emitter, _ := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := gov.TransferAuthority(addr(0xCC), addr(0xDD)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := gov.TransferAuthority(addr(0xAA), [20]byte{}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for zero address, got %v", err)
	}
	if err := gov.TransferAuthority(addr(0xAA), addr(0xAA)); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for unchanged authority, got %v", err)
	}
	if err := gov.TransferAuthority(addr(0xAA), addr(0xDD)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if state.cfg.Authority != addr(0xDD) {
		t.Fatalf("authority not updated")
	}
	if got := emitter.typed(EventTypeAuthorityTransferred); len(got) != 1 {
		t.Fatalf("expected one transfer event, got %d", len(got))
	}

	// The old authority no longer governs.
	cooldown := int64(60)
	if err := gov.Update(addr(0xAA), Changes{ActivityCooldown: &cooldown}, 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for old authority, got %v", err)
	}
}

func TestGovernorIncrementTotalMinted(t *testing.T) {
	gov, state, _, _ := newTestGovernor(t, 1_700_000_000)
	if err := gov.Initialize(baseConfig()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	for want := uint64(0); want < 3; want++ {
		got, err := gov.IncrementTotalMinted()
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("expected mint index %d, got %d", want, got)
		}
	}
	if state.cfg.TotalMinted != 3 {
		t.Fatalf("expected counter 3, got %d", state.cfg.TotalMinted)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero authority", func(c *Config) { c.Authority = [20]byte{} }},
		{"zero treasury", func(c *Config) { c.Treasury = [20]byte{} }},
		{"zero activity cooldown", func(c *Config) { c.ActivityCooldown = 0 }},
		{"zero upgrade base cost", func(c *Config) { c.UpgradeBaseCost = 0 }},
		{"zero scaling factor", func(c *Config) { c.UpgradeScalingFactor = 0 }},
		{"zero reward rate", func(c *Config) { c.RewardRate = 0 }},
		{"burn over 100", func(c *Config) { c.BurnPercentage = 101 }},
		{"winner pct over 100", func(c *Config) { c.CombatWinnerPercentage = 101 }},
		{"wager bounds inverted", func(c *Config) { c.MinCombatWager = 500; c.MaxCombatWager = 100 }},
		{"thresholds not ascending", func(c *Config) { c.RarityThresholds = [5]uint64{400, 400, 800, 950, 1020} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
}

func TestConfigNormalizeDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()
	if cfg.RarityThresholds != DefaultRarityThresholds {
		t.Fatalf("expected default thresholds, got %v", cfg.RarityThresholds)
	}
	custom := &Config{RarityThresholds: [5]uint64{1, 2, 3, 4, 5}}
	custom.Normalize()
	if custom.RarityThresholds != ([5]uint64{1, 2, 3, 4, 5}) {
		t.Fatalf("normalize must not clobber explicit thresholds")
	}
}

func TestChangesSplit(t *testing.T) {
	cooldown := int64(60)
	rate := uint64(5)
	thresholds := [5]uint64{100, 200, 300, 400, 500}
	ch := Changes{ActivityCooldown: &cooldown, RewardRate: &rate, RarityThresholds: &thresholds}
	critical, immediate := ch.Split()
	if critical.RewardRate == nil || critical.ActivityCooldown != nil || critical.RarityThresholds != nil {
		t.Fatalf("critical split wrong: %+v", critical)
	}
	if immediate.ActivityCooldown == nil || immediate.RarityThresholds == nil || immediate.RewardRate != nil {
		t.Fatalf("immediate split wrong: %+v", immediate)
	}
	if (Changes{}).Empty() != true {
		t.Fatalf("zero delta should be empty")
	}
	if ch.Empty() {
		t.Fatalf("non-zero delta reported empty")
	}
}
