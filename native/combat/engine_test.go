package combat

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"testing"
	"time"

	"zenbeasts/core/events"
	"zenbeasts/core/types"
	"zenbeasts/native/params"
	"zenbeasts/native/treasury"
)

// mockState backs the engine, governor, and ledger with plain maps.
type mockState struct {
	beasts   map[[32]byte]*types.BeastAccount
	sessions map[uint64]*types.CombatSession
	accounts map[[20]byte]*types.Account
	supply   *big.Int
	cfg      *params.Config
}

func newMockState() *mockState {
	return &mockState{
		beasts:   make(map[[32]byte]*types.BeastAccount),
		sessions: make(map[uint64]*types.CombatSession),
		accounts: make(map[[20]byte]*types.Account),
		supply:   big.NewInt(1_000_000_000),
	}
}

func (m *mockState) BeastGet(id [32]byte) (*types.BeastAccount, bool, error) {
	b, ok := m.beasts[id]
	if !ok {
		return nil, false, nil
	}
	return b.Clone(), true, nil
}

func (m *mockState) BeastPut(b *types.BeastAccount) error {
	m.beasts[b.ID] = b.Clone()
	return nil
}

func (m *mockState) CombatSessionGet(id uint64) (*types.CombatSession, bool, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (m *mockState) CombatSessionPut(s *types.CombatSession) error {
	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *mockState) CombatSessionDelete(id uint64) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return &types.Account{BalanceZen: big.NewInt(0)}, nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) TokenSupply() (*big.Int, error) {
	return new(big.Int).Set(m.supply), nil
}

func (m *mockState) SetTokenSupply(supply *big.Int) error {
	m.supply = new(big.Int).Set(supply)
	return nil
}

func (m *mockState) EconomyConfig() (*params.Config, bool, error) {
	if m.cfg == nil {
		return nil, false, nil
	}
	return m.cfg.Clone(), true, nil
}

func (m *mockState) SetEconomyConfig(cfg *params.Config) error {
	m.cfg = cfg.Clone()
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *captureEmitter) typed(eventType string) []*types.Event {
	var out []*types.Event
	for _, evt := range c.events {
		if evt.EventType() != eventType {
			continue
		}
		carrier, ok := evt.(interface{ Event() *types.Event })
		if !ok {
			continue
		}
		out = append(out, carrier.Event())
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

var (
	authorityAddr  = addr(0xAA)
	treasuryAddr   = addr(0xBB)
	challengerAddr = addr(0x01)
	opponentAddr   = addr(0x02)
	outsiderAddr   = addr(0x03)
)

func testConfig() *params.Config {
	cfg := &params.Config{
		Authority:              authorityAddr,
		Treasury:               treasuryAddr,
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
		AbilityUnlockCost:      1000,
		AbilityUpgradeCost:     500,
		CombatCooldown:         1800,
		MinCombatWager:         10,
		MaxCombatWager:         100000,
		CombatTurnTimeout:      300,
		CombatWinnerPercentage: 90,
	}
	cfg.Normalize()
	return cfg
}

// combatBeast builds a fight-ready record: HP 500, all four slots unlocked
// at level 1.
func combatBeast(id byte, owner [20]byte) *types.BeastAccount {
	b := &types.BeastAccount{
		Owner:  owner,
		Name:   "fighter-" + strconv.Itoa(int(id)),
		Traits: [10]byte{100, 80, 60, 50},
	}
	b.ID[0] = id
	b.Abilities = [4]uint8{1, 2, 3, 4}
	b.AbilityLevels = [4]uint8{1, 1, 1, 1}
	b.RarityScore = 290
	b.ResetCombatVitals()
	return b
}

type testEnv struct {
	engine  *Engine
	gov     *params.Governor
	ledger  *treasury.Ledger
	state   *mockState
	emitter *captureEmitter
	clock   int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:   newMockState(),
		emitter: &captureEmitter{},
		clock:   1_700_000_000,
	}

	env.gov = params.NewGovernor()
	env.gov.SetState(env.state)
	env.gov.SetEmitter(env.emitter)
	env.gov.SetNowFunc(env.nowFn)
	if err := env.gov.Initialize(testConfig()); err != nil {
		t.Fatalf("initialize config: %v", err)
	}

	env.ledger = treasury.NewLedger()
	env.ledger.SetState(env.state)
	env.ledger.SetEmitter(env.emitter)

	env.engine = NewEngine()
	env.engine.SetState(env.state)
	env.engine.SetGovernor(env.gov)
	env.engine.SetLedger(env.ledger)
	env.engine.SetEmitter(env.emitter)
	env.engine.SetNowFunc(env.nowFn)
	return env
}

func (env *testEnv) nowFn() time.Time { return time.Unix(env.clock, 0) }

func (env *testEnv) advance(seconds int64) { env.clock += seconds }

func (env *testEnv) fund(a [20]byte, amount int64) {
	env.state.accounts[a] = &types.Account{BalanceZen: big.NewInt(amount)}
}

func (env *testEnv) balance(a [20]byte) int64 {
	acc, ok := env.state.accounts[a]
	if !ok || acc.BalanceZen == nil {
		return 0
	}
	return acc.BalanceZen.Int64()
}

func (env *testEnv) addBeast(b *types.BeastAccount) {
	env.state.beasts[b.ID] = b
}

func (env *testEnv) beast(t *testing.T, id [32]byte) *types.BeastAccount {
	t.Helper()
	b, ok := env.state.beasts[id]
	if !ok {
		t.Fatalf("beast %x missing from state", id[:4])
	}
	return b
}

// startCombat funds both owners and opens a session between two default
// fighters, returning the session and both beast IDs.
func (env *testEnv) startCombat(t *testing.T, sessionID, wager uint64) (*types.CombatSession, [32]byte, [32]byte) {
	t.Helper()
	a := combatBeast(0x11, challengerAddr)
	b := combatBeast(0x22, opponentAddr)
	env.addBeast(a)
	env.addBeast(b)
	env.fund(challengerAddr, 1_000_000)
	env.fund(opponentAddr, 1_000_000)
	s, err := env.engine.Initiate(challengerAddr, sessionID, a.ID, b.ID, wager)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return s, a.ID, b.ID
}

func TestInitiateCombat(t *testing.T) {
	env := newTestEnv(t)

	s, challengerID, opponentID := env.startCombat(t, 1, 100)
	if s.WagerAmount != 100 || s.EscrowedAmount != 100 {
		t.Fatalf("wager/escrow = %d/%d, want 100/100", s.WagerAmount, s.EscrowedAmount)
	}
	if s.ChallengerHP != 500 || s.OpponentHP != 500 {
		t.Fatalf("hp snapshots %d/%d, want 500/500", s.ChallengerHP, s.OpponentHP)
	}
	if s.TurnCount != 0 || !s.IsActive() {
		t.Fatalf("fresh session should be active at turn 0")
	}
	if s.LastTurnAt != env.clock {
		t.Fatalf("turn window must anchor at initiation")
	}
	if want := DeriveCombatSeed(1, challengerID, opponentID, env.clock); s.CombatSeed != want {
		t.Fatalf("combat seed %d, want %d", s.CombatSeed, want)
	}

	if got := env.balance(challengerAddr); got != 999_900 {
		t.Fatalf("challenger owner balance %d, want 999900", got)
	}
	if got := env.balance(EscrowAddress(1)); got != 100 {
		t.Fatalf("escrow balance %d, want 100", got)
	}
	if got := env.balance(opponentAddr); got != 1_000_000 {
		t.Fatalf("opponent owner must not escrow at initiation, balance %d", got)
	}

	if !env.beast(t, challengerID).Combat.InCombat || !env.beast(t, opponentID).Combat.InCombat {
		t.Fatalf("both beasts must be marked in combat")
	}

	initiated := env.emitter.typed(EventTypeCombatInitiated)
	if len(initiated) != 1 {
		t.Fatalf("expected one initiated event, got %d", len(initiated))
	}
	attrs := initiated[0].Attributes
	if attrs["wagerAmount"] != "100" || attrs["sessionId"] != "1" {
		t.Fatalf("unexpected initiated attributes: %+v", attrs)
	}
	if attrs["challengerOwner"] != hex.EncodeToString(challengerAddr[:]) {
		t.Fatalf("initiated event missing challenger owner")
	}
}

func TestInitiateValidation(t *testing.T) {
	env := newTestEnv(t)
	a := combatBeast(0x11, challengerAddr)
	b := combatBeast(0x22, opponentAddr)
	env.addBeast(a)
	env.addBeast(b)
	env.fund(challengerAddr, 1_000_000)
	env.fund(opponentAddr, 1_000_000)

	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 5); !errors.Is(err, ErrInsufficientWager) {
		t.Fatalf("wager below minimum: %v", err)
	}
	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 200_000); !errors.Is(err, ErrInsufficientWager) {
		t.Fatalf("wager above maximum: %v", err)
	}
	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, a.ID, 100); !errors.Is(err, ErrSameBeast) {
		t.Fatalf("same beast twice: %v", err)
	}
	var unknown [32]byte
	unknown[0] = 0x99
	if _, err := env.engine.Initiate(challengerAddr, 1, unknown, b.ID, 100); !errors.Is(err, ErrBeastNotFound) {
		t.Fatalf("unknown challenger: %v", err)
	}
	if _, err := env.engine.Initiate(outsiderAddr, 1, a.ID, b.ID, 100); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("caller not challenger owner: %v", err)
	}

	sibling := combatBeast(0x33, challengerAddr)
	env.addBeast(sibling)
	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, sibling.ID, 100); !errors.Is(err, ErrSelfCombat) {
		t.Fatalf("both sides same owner: %v", err)
	}

	unarmed := combatBeast(0x44, challengerAddr)
	unarmed.Abilities = [4]uint8{}
	env.addBeast(unarmed)
	if _, err := env.engine.Initiate(challengerAddr, 1, unarmed.ID, b.ID, 100); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("challenger without abilities: %v", err)
	}

	busy := combatBeast(0x55, opponentAddr)
	busy.Combat.InCombat = true
	env.addBeast(busy)
	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, busy.ID, 100); !errors.Is(err, ErrOpponentUnavailable) {
		t.Fatalf("opponent already fighting: %v", err)
	}

	resting := combatBeast(0x66, challengerAddr)
	resting.Combat.LastCombatAt = env.clock - 10
	env.addBeast(resting)
	if _, err := env.engine.Initiate(challengerAddr, 1, resting.ID, b.ID, 100); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("challenger on combat cooldown: %v", err)
	}

	env.fund(challengerAddr, 10)
	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100); !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Fatalf("unfunded challenger: %v", err)
	}
	if _, err := env.engine.Session(1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("failed initiation must not leave a session behind")
	}
	if env.beast(t, a.ID).Combat.InCombat {
		t.Fatalf("failed initiation must not mark beasts")
	}
	env.fund(challengerAddr, 1_000_000)

	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("duplicate session id: %v", err)
	}
}

func TestExecuteTurnFlow(t *testing.T) {
	env := newTestEnv(t)
	_, challengerID, _ := env.startCombat(t, 1, 100)

	env.advance(5)
	s, effect, err := env.engine.ExecuteTurn(challengerAddr, 1, 0)
	if err != nil {
		t.Fatalf("challenger turn: %v", err)
	}
	// Strength at trait 100, level 1: base 200, factored 80-120%.
	if effect < 160 || effect > 240 {
		t.Fatalf("strength effect %d outside [160, 240]", effect)
	}
	if s.OpponentHP != 500-effect {
		t.Fatalf("opponent hp %d, want %d", s.OpponentHP, 500-effect)
	}
	if s.ChallengerHP != 500 {
		t.Fatalf("challenger hp must be untouched on own attack")
	}
	if s.TurnCount != 1 || s.LastTurnAt != env.clock {
		t.Fatalf("turn bookkeeping wrong: count=%d lastTurnAt=%d", s.TurnCount, s.LastTurnAt)
	}
	if got := env.beast(t, challengerID).Combat.Energy; got != 78 {
		t.Fatalf("level-1 ability must cost 22 energy, left %d", got)
	}
	if got := env.balance(opponentAddr); got != 1_000_000 {
		t.Fatalf("opponent escrows only on their own turn, balance %d", got)
	}

	env.advance(5)
	s, effect, err = env.engine.ExecuteTurn(opponentAddr, 1, 1)
	if err != nil {
		t.Fatalf("opponent turn: %v", err)
	}
	// Agility at trait 80, level 1: base 120.
	if effect < 96 || effect > 144 {
		t.Fatalf("agility effect %d outside [96, 144]", effect)
	}
	if s.ChallengerHP != 500-effect {
		t.Fatalf("challenger hp %d, want %d", s.ChallengerHP, 500-effect)
	}
	if s.EscrowedAmount != 200 {
		t.Fatalf("opponent's first turn must escrow their wager, pot %d", s.EscrowedAmount)
	}
	if got := env.balance(opponentAddr); got != 999_900 {
		t.Fatalf("opponent owner balance %d, want 999900", got)
	}
	if got := env.balance(EscrowAddress(1)); got != 200 {
		t.Fatalf("escrow balance %d, want 200", got)
	}
	if s.TurnCount != 2 {
		t.Fatalf("turn count %d, want 2", s.TurnCount)
	}

	// Energy saturates at zero rather than gating the turn.
	env.beast(t, challengerID).Combat.Energy = 5
	env.advance(5)
	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 0); err != nil {
		t.Fatalf("low-energy turn: %v", err)
	}
	if got := env.beast(t, challengerID).Combat.Energy; got != 0 {
		t.Fatalf("energy should saturate at 0, got %d", got)
	}

	turns := env.emitter.typed(EventTypeCombatTurn)
	if len(turns) != 3 {
		t.Fatalf("expected three turn events, got %d", len(turns))
	}
	attrs := turns[0].Attributes
	if attrs["turnCount"] != "1" || attrs["abilitySlot"] != "0" || attrs["status"] != "active" {
		t.Fatalf("unexpected turn attributes: %+v", attrs)
	}
	if attrs["executor"] != hex.EncodeToString(challengerAddr[:]) {
		t.Fatalf("turn event missing executor")
	}
}

func TestExecuteTurnValidation(t *testing.T) {
	env := newTestEnv(t)
	_, challengerID, _ := env.startCombat(t, 1, 100)

	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 99, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown session: %v", err)
	}
	if _, _, err := env.engine.ExecuteTurn(outsiderAddr, 1, 0); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("outsider turn: %v", err)
	}
	if _, _, err := env.engine.ExecuteTurn(opponentAddr, 1, 0); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("opponent moving first: %v", err)
	}
	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 9); !errors.Is(err, ErrInvalidAbilitySlot) {
		t.Fatalf("slot out of range: %v", err)
	}

	env.beast(t, challengerID).Abilities[3] = 0
	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 3); !errors.Is(err, ErrAbilityNotUnlocked) {
		t.Fatalf("locked slot: %v", err)
	}

	env.advance(300)
	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 0); !errors.Is(err, ErrTurnTimeout) {
		t.Fatalf("expired turn window: %v", err)
	}
	// An expired session never finished, so it cannot be resolved either.
	if _, err := env.engine.Resolve(challengerAddr, 1); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("resolve on expired-but-active session: %v", err)
	}
}

func TestVitalityTurnHeals(t *testing.T) {
	env := newTestEnv(t)
	env.startCombat(t, 1, 100)

	// Healing at full HP clamps to the ceiling.
	env.advance(1)
	s, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 3)
	if err != nil {
		t.Fatalf("heal turn: %v", err)
	}
	if s.ChallengerHP != 500 {
		t.Fatalf("heal at full hp must clamp to 500, got %d", s.ChallengerHP)
	}

	env.advance(1)
	s, _, err = env.engine.ExecuteTurn(opponentAddr, 1, 0)
	if err != nil {
		t.Fatalf("opponent turn: %v", err)
	}
	damaged := s.ChallengerHP
	if damaged >= 500 {
		t.Fatalf("opponent attack must land, hp %d", damaged)
	}
	opponentHP := s.OpponentHP

	env.advance(1)
	s, effect, err := env.engine.ExecuteTurn(challengerAddr, 1, 3)
	if err != nil {
		t.Fatalf("heal turn: %v", err)
	}
	// Vitality at trait 50, level 1: base 75, factored 80-120%.
	if effect < 60 || effect > 90 {
		t.Fatalf("heal effect %d outside [60, 90]", effect)
	}
	if s.ChallengerHP != damaged+effect {
		t.Fatalf("challenger hp %d, want %d", s.ChallengerHP, damaged+effect)
	}
	if s.OpponentHP != opponentHP {
		t.Fatalf("healing must not touch the defender")
	}
}

func TestKnockoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	a := combatBeast(0x11, challengerAddr)
	a.Traits[types.TraitStrength] = 200
	a.AbilityLevels[0] = 5
	b := combatBeast(0x22, opponentAddr)
	b.Traits[types.TraitVitality] = 5
	b.ResetCombatVitals()
	env.addBeast(a)
	env.addBeast(b)
	env.fund(challengerAddr, 1_000_000)
	env.fund(opponentAddr, 1_000_000)

	s, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if s.OpponentHP != 50 {
		t.Fatalf("opponent hp snapshot %d, want 50", s.OpponentHP)
	}

	// Strength at trait 200, level 5: minimum effect 1600, far past 50 HP.
	env.advance(1)
	s, _, err = env.engine.ExecuteTurn(challengerAddr, 1, 0)
	if err != nil {
		t.Fatalf("knockout turn: %v", err)
	}
	if s.OpponentHP != 0 || s.Status != types.CombatChallengerWon {
		t.Fatalf("expected challenger knockout, hp=%d status=%s", s.OpponentHP, s.Status)
	}

	env.advance(1)
	if _, _, err := env.engine.ExecuteTurn(opponentAddr, 1, 0); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("turn after knockout: %v", err)
	}

	turns := env.emitter.typed(EventTypeCombatTurn)
	if got := turns[len(turns)-1].Attributes["status"]; got != "challenger_won" {
		t.Fatalf("final turn event status %q", got)
	}
}

func TestDrawAtTurnLimit(t *testing.T) {
	env := newTestEnv(t)
	a := combatBeast(0x11, challengerAddr)
	a.Traits[types.TraitWisdom] = 0
	b := combatBeast(0x22, opponentAddr)
	b.Traits[types.TraitWisdom] = 0
	env.addBeast(a)
	env.addBeast(b)
	env.fund(challengerAddr, 1_000_000)
	env.fund(opponentAddr, 1_000_000)

	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	var s *types.CombatSession
	for turn := 0; turn < types.MaxTurns; turn++ {
		caller := challengerAddr
		if turn%2 == 1 {
			caller = opponentAddr
		}
		env.advance(1)
		var effect uint16
		var err error
		s, effect, err = env.engine.ExecuteTurn(caller, 1, 2)
		if err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
		if effect != 0 {
			t.Fatalf("zero wisdom must deal nothing, turn %d dealt %d", turn, effect)
		}
	}
	if s.Status != types.CombatDraw || s.TurnCount != types.MaxTurns {
		t.Fatalf("expected draw at turn %d, got status=%s count=%d", types.MaxTurns, s.Status, s.TurnCount)
	}
	if s.ChallengerHP != 500 || s.OpponentHP != 500 {
		t.Fatalf("hp must be untouched in a zero-damage draw")
	}
}

func TestResolveEarlyKnockout(t *testing.T) {
	env := newTestEnv(t)
	a := combatBeast(0x11, challengerAddr)
	a.Traits[types.TraitStrength] = 200
	a.AbilityLevels[0] = 5
	b := combatBeast(0x22, opponentAddr)
	b.Traits[types.TraitVitality] = 5
	b.ResetCombatVitals()
	env.addBeast(a)
	env.addBeast(b)
	env.fund(challengerAddr, 1_000_000)
	env.fund(opponentAddr, 1_000_000)

	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	env.advance(1)
	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 0); err != nil {
		t.Fatalf("knockout turn: %v", err)
	}

	if _, err := env.engine.Resolve(outsiderAddr, 1); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("outsider resolve: %v", err)
	}

	env.advance(1)
	s, err := env.engine.Resolve(opponentAddr, 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.Status != types.CombatChallengerWon {
		t.Fatalf("resolved status %s", s.Status)
	}

	// The opponent never took a turn, so the pot is the challenger's
	// escrow alone: 100, paid out 90/10.
	if got := env.balance(challengerAddr); got != 999_990 {
		t.Fatalf("winner balance %d, want 999990", got)
	}
	if got := env.balance(opponentAddr); got != 1_000_000 {
		t.Fatalf("loser must not be debited beyond escrow, balance %d", got)
	}
	if got := env.balance(EscrowAddress(1)); got != 0 {
		t.Fatalf("escrow must be emptied, balance %d", got)
	}
	if got := env.state.supply.Int64(); got != 999_999_990 {
		t.Fatalf("supply %d, want 999999990 after burning 10", got)
	}

	winner := env.beast(t, a.ID)
	loser := env.beast(t, b.ID)
	if winner.Combat.Wins != 1 || winner.Combat.Losses != 0 {
		t.Fatalf("winner tallies %d/%d", winner.Combat.Wins, winner.Combat.Losses)
	}
	if loser.Combat.Losses != 1 || loser.Combat.Wins != 0 {
		t.Fatalf("loser tallies %d/%d", loser.Combat.Wins, loser.Combat.Losses)
	}
	if winner.Combat.InCombat || loser.Combat.InCombat {
		t.Fatalf("both beasts must leave combat")
	}
	if winner.Combat.LastCombatAt != env.clock || loser.Combat.LastCombatAt != env.clock {
		t.Fatalf("combat cooldown must anchor at resolution")
	}

	if _, err := env.engine.Session(1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session must be deleted after resolve, got %v", err)
	}

	resolved := env.emitter.typed(EventTypeCombatResolved)
	if len(resolved) != 1 {
		t.Fatalf("expected one resolved event, got %d", len(resolved))
	}
	attrs := resolved[0].Attributes
	if attrs["totalPot"] != "100" || attrs["winnerPayout"] != "90" || attrs["burnedAmount"] != "10" {
		t.Fatalf("unexpected resolved attributes: %+v", attrs)
	}
	if attrs["winner"] != hex.EncodeToString(a.ID[:]) {
		t.Fatalf("resolved event missing winner")
	}
}

func TestResolveFullPot(t *testing.T) {
	env := newTestEnv(t)
	a := combatBeast(0x11, challengerAddr)
	a.Traits[types.TraitWisdom] = 0
	b := combatBeast(0x22, opponentAddr)
	b.Traits[types.TraitStrength] = 200
	b.AbilityLevels[0] = 5
	env.addBeast(a)
	env.addBeast(b)
	env.fund(challengerAddr, 1_000_000)
	env.fund(opponentAddr, 1_000_000)

	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	env.advance(1)
	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 2); err != nil {
		t.Fatalf("challenger turn: %v", err)
	}
	env.advance(1)
	s, _, err := env.engine.ExecuteTurn(opponentAddr, 1, 0)
	if err != nil {
		t.Fatalf("opponent turn: %v", err)
	}
	if s.Status != types.CombatOpponentWon || s.EscrowedAmount != 200 {
		t.Fatalf("expected opponent knockout on a full pot, status=%s pot=%d", s.Status, s.EscrowedAmount)
	}

	env.advance(1)
	if _, err := env.engine.Resolve(challengerAddr, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Pot 200 splits 180 to the winner, 20 burned.
	if got := env.balance(opponentAddr); got != 1_000_080 {
		t.Fatalf("winner balance %d, want 1000080", got)
	}
	if got := env.balance(challengerAddr); got != 999_900 {
		t.Fatalf("loser balance %d, want 999900", got)
	}
	if got := env.state.supply.Int64(); got != 999_999_980 {
		t.Fatalf("supply %d, want 999999980 after burning 20", got)
	}
}

func TestResolveDrawRefundsWagers(t *testing.T) {
	env := newTestEnv(t)
	a := combatBeast(0x11, challengerAddr)
	a.Traits[types.TraitWisdom] = 0
	b := combatBeast(0x22, opponentAddr)
	b.Traits[types.TraitWisdom] = 0
	env.addBeast(a)
	env.addBeast(b)
	env.fund(challengerAddr, 1_000_000)
	env.fund(opponentAddr, 1_000_000)

	if _, err := env.engine.Initiate(challengerAddr, 1, a.ID, b.ID, 100); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	for turn := 0; turn < types.MaxTurns; turn++ {
		caller := challengerAddr
		if turn%2 == 1 {
			caller = opponentAddr
		}
		env.advance(1)
		if _, _, err := env.engine.ExecuteTurn(caller, 1, 2); err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
	}

	env.advance(1)
	s, err := env.engine.Resolve(challengerAddr, 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.Status != types.CombatDraw {
		t.Fatalf("resolved status %s", s.Status)
	}
	if env.balance(challengerAddr) != 1_000_000 || env.balance(opponentAddr) != 1_000_000 {
		t.Fatalf("draw must refund both wagers: %d / %d", env.balance(challengerAddr), env.balance(opponentAddr))
	}
	if got := env.state.supply.Int64(); got != 1_000_000_000 {
		t.Fatalf("draw must not burn, supply %d", got)
	}
	if env.beast(t, a.ID).Combat.Wins != 0 || env.beast(t, b.ID).Combat.Losses != 0 {
		t.Fatalf("draw must not move the tallies")
	}

	resolved := env.emitter.typed(EventTypeCombatResolved)
	attrs := resolved[len(resolved)-1].Attributes
	if attrs["status"] != "draw" || attrs["winner"] != "" {
		t.Fatalf("unexpected draw attributes: %+v", attrs)
	}
}

func TestResolveRequiresFinishedSession(t *testing.T) {
	env := newTestEnv(t)
	env.startCombat(t, 1, 100)

	if _, err := env.engine.Resolve(challengerAddr, 1); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("resolve on active session: %v", err)
	}
	if _, err := env.engine.Resolve(challengerAddr, 99); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("resolve on unknown session: %v", err)
	}
}

func TestGovernedTurnTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.startCombat(t, 1, 100)

	// The turn timeout is an immediate parameter; tightening it applies to
	// in-flight sessions at once.
	timeout := int64(60)
	if err := env.gov.Update(authorityAddr, params.Changes{CombatTurnTimeout: &timeout}, 0); err != nil {
		t.Fatalf("update: %v", err)
	}
	env.advance(100)
	if _, _, err := env.engine.ExecuteTurn(challengerAddr, 1, 0); !errors.Is(err, ErrTurnTimeout) {
		t.Fatalf("tightened window must reject the turn: %v", err)
	}
}
