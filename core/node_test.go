package core

import (
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"zenbeasts/core/journal"
	"zenbeasts/core/types"
	"zenbeasts/native/beast"
	"zenbeasts/native/combat"
	"zenbeasts/native/params"
	"zenbeasts/storage"
)

func nodeAddr(b byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = b
	}
	return a
}

var (
	genAuthority = nodeAddr(0xAA)
	genTreasury  = nodeAddr(0xBB)
	playerAddr   = nodeAddr(0x01)
	rivalAddr    = nodeAddr(0x02)
)

func genesisParams() *params.Config {
	return &params.Config{
		Authority:              genAuthority,
		Treasury:               genTreasury,
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
}

type nodeEnv struct {
	t     *testing.T
	node  *Node
	clock int64
}

func newNodeEnv(t *testing.T) *nodeEnv {
	t.Helper()
	node, err := NewNode(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	env := &nodeEnv{t: t, node: node, clock: 1_700_000_000}
	node.SetNowFunc(func() time.Time { return time.Unix(env.clock, 0) })
	balances := map[[20]byte]*big.Int{
		genTreasury: big.NewInt(50_000_000),
		playerAddr:  big.NewInt(1_000_000),
		rivalAddr:   big.NewInt(1_000_000),
	}
	if err := node.ApplyGenesis(genesisParams(), big.NewInt(1_000_000_000), balances); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	return env
}

func (env *nodeEnv) advance(seconds int64) { env.clock += seconds }

func (env *nodeEnv) balance(addr [20]byte) uint64 {
	env.t.Helper()
	account, err := env.node.GetAccount(addr)
	if err != nil {
		env.t.Fatalf("get account: %v", err)
	}
	return account.BalanceZen.Uint64()
}

func (env *nodeEnv) supply() uint64 {
	env.t.Helper()
	supply, err := env.node.TokenSupply()
	if err != nil {
		env.t.Fatalf("token supply: %v", err)
	}
	return supply.Uint64()
}

func (env *nodeEnv) mint(owner [20]byte, name string, seed uint64) *types.BeastAccount {
	env.t.Helper()
	minted, err := env.node.Mint(owner, name, "", seed)
	if err != nil {
		env.t.Fatalf("mint %s: %v", name, err)
	}
	return minted
}

func coreTraitSum(traits [10]byte) uint64 {
	var sum uint64
	for i := 0; i < types.CoreTraitCount; i++ {
		sum += uint64(traits[i])
	}
	return sum
}

func TestNodeGenesis(t *testing.T) {
	env := newNodeEnv(t)

	ok, err := env.node.Initialized()
	if err != nil || !ok {
		t.Fatalf("expected initialized node, got ok=%v err=%v", ok, err)
	}
	cfg, err := env.node.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.Authority != genAuthority || cfg.Treasury != genTreasury {
		t.Fatalf("unexpected genesis addresses: %x / %x", cfg.Authority, cfg.Treasury)
	}
	if cfg.RarityThresholds != params.DefaultRarityThresholds {
		t.Fatalf("expected default rarity thresholds, got %v", cfg.RarityThresholds)
	}
	if got := env.supply(); got != 1_000_000_000 {
		t.Fatalf("expected genesis supply, got %d", got)
	}
	if got := env.balance(playerAddr); got != 1_000_000 {
		t.Fatalf("expected seeded player balance, got %d", got)
	}

	if err := env.node.ApplyGenesis(genesisParams(), big.NewInt(1), nil); !errors.Is(err, params.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized on second genesis, got %v", err)
	}
	if err := env.node.InitializeEconomy(genesisParams()); !errors.Is(err, params.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized on re-init, got %v", err)
	}
}

func TestNodeBeastLifecycle(t *testing.T) {
	env := newNodeEnv(t)

	minted := env.mint(playerAddr, "Ember", 42)
	if minted.Owner != playerAddr {
		t.Fatalf("unexpected owner %x", minted.Owner)
	}
	if !strings.HasPrefix(minted.MetadataURI, beast.DefaultMetadataBase+"/0/") {
		t.Fatalf("unexpected derived uri %q", minted.MetadataURI)
	}
	if minted.RarityScore != coreTraitSum(minted.Traits) {
		t.Fatalf("rarity %d does not match trait sum %d", minted.RarityScore, coreTraitSum(minted.Traits))
	}
	if minted.Combat.HP != uint16(minted.Traits[3])*10 || minted.Combat.Energy != types.MaxEnergy {
		t.Fatalf("combat vitals not reset: %+v", minted.Combat)
	}

	env.advance(3600)
	updated, earned, err := env.node.PerformActivity(playerAddr, minted.ID, 1)
	if err != nil {
		t.Fatalf("perform activity: %v", err)
	}
	if earned != 36_000 {
		t.Fatalf("expected 36000 earned over one hour at rate 10, got %d", earned)
	}
	if updated.PendingRewards != 36_000 || updated.ActivityCount != 1 {
		t.Fatalf("unexpected beast after activity: pending=%d count=%d", updated.PendingRewards, updated.ActivityCount)
	}
	if _, _, err := env.node.PerformActivity(playerAddr, minted.ID, 1); !errors.Is(err, beast.ErrCooldownActive) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}

	env.advance(3600)
	paid, err := env.node.ClaimRewards(playerAddr, minted.ID)
	if err != nil {
		t.Fatalf("claim rewards: %v", err)
	}
	// Banked 36000 plus another hour accrued since the activity.
	if paid != 72_000 {
		t.Fatalf("expected claim of 72000, got %d", paid)
	}
	if got := env.balance(playerAddr); got != 1_000_000+72_000 {
		t.Fatalf("player balance after claim: %d", got)
	}
	if got := env.balance(genTreasury); got != 50_000_000-72_000 {
		t.Fatalf("treasury balance after claim: %d", got)
	}

	quote, err := env.node.PreviewUpgrade(minted.ID, 0)
	if err != nil {
		t.Fatalf("preview upgrade: %v", err)
	}
	wantCost := 100 * (50 + uint64(minted.Traits[0])) / 50
	if quote != wantCost {
		t.Fatalf("preview quoted %d, formula says %d", quote, wantCost)
	}
	playerBefore := env.balance(playerAddr)
	supplyBefore := env.supply()
	upgraded, cost, err := env.node.UpgradeTrait(playerAddr, minted.ID, 0, quote)
	if err != nil {
		t.Fatalf("upgrade trait: %v", err)
	}
	if cost != quote {
		t.Fatalf("charged %d, quoted %d", cost, quote)
	}
	if upgraded.Traits[0] != minted.Traits[0]+1 {
		t.Fatalf("trait not raised: %d -> %d", minted.Traits[0], upgraded.Traits[0])
	}
	if upgraded.RarityScore != minted.RarityScore+1 {
		t.Fatalf("rarity not recomputed: %d -> %d", minted.RarityScore, upgraded.RarityScore)
	}
	if got := env.balance(playerAddr); got != playerBefore-cost {
		t.Fatalf("player balance after upgrade: %d", got)
	}
	if got := env.supply(); got != supplyBefore-cost*10/100 {
		t.Fatalf("supply after upgrade burn: %d", got)
	}
}

func TestNodeBreeding(t *testing.T) {
	env := newNodeEnv(t)

	parentA := env.mint(playerAddr, "Sire", 7)
	parentB := env.mint(playerAddr, "Dam", 8)

	quote, err := env.node.PreviewBreeding(parentA.ID, parentB.ID)
	if err != nil {
		t.Fatalf("preview breeding: %v", err)
	}
	if quote != 500 {
		t.Fatalf("generation-zero breeding should cost the base 500, got %d", quote)
	}

	playerBefore := env.balance(playerAddr)
	treasuryBefore := env.balance(genTreasury)
	supplyBefore := env.supply()

	child, err := env.node.Breed(playerAddr, parentA.ID, parentB.ID, "Whelp", "", 99, 600)
	if err != nil {
		t.Fatalf("breed: %v", err)
	}
	if child.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", child.Generation)
	}
	if child.Parents != [2][32]byte{parentA.ID, parentB.ID} {
		t.Fatalf("parents not recorded")
	}
	for i := 0; i < types.CoreTraitCount; i++ {
		avg := (int(parentA.Traits[i]) + int(parentB.Traits[i])) / 2
		diff := int(child.Traits[i]) - avg
		if diff < -20 || diff > 20 {
			t.Fatalf("core trait %d drifted %d from parental average", i, diff)
		}
	}
	for i := types.CoreTraitCount; i < len(child.Traits); i++ {
		avg := byte((int(parentA.Traits[i]) + int(parentB.Traits[i])) / 2)
		if child.Traits[i] != avg {
			t.Fatalf("reserved trait %d should inherit the average", i)
		}
	}

	// The full offered payment settles, not just the quote.
	if got := env.balance(playerAddr); got != playerBefore-600 {
		t.Fatalf("player balance after breed: %d", got)
	}
	if got := env.balance(genTreasury); got != treasuryBefore+540 {
		t.Fatalf("treasury balance after breed: %d", got)
	}
	if got := env.supply(); got != supplyBefore-60 {
		t.Fatalf("supply after breed burn: %d", got)
	}

	mutatedA, err := env.node.GetBeast(parentA.ID)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if mutatedA.BreedingCount != 1 || mutatedA.LastBreedingAt != env.clock {
		t.Fatalf("parent not updated: %+v", mutatedA)
	}

	if _, err := env.node.Breed(playerAddr, parentA.ID, parentB.ID, "Again", "", 100, 600); !errors.Is(err, beast.ErrBreedingCooldownActive) {
		t.Fatalf("expected breeding cooldown, got %v", err)
	}
}

func TestNodeRollbackDiscardsPartialWrites(t *testing.T) {
	env := newNodeEnv(t)

	parentA := env.mint(playerAddr, "Sire", 7)
	parentB := env.mint(playerAddr, "Dam", 8)
	taken := parentA.MetadataURI

	cfg, err := env.node.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	mintedBefore := cfg.TotalMinted
	balanceBefore := env.balance(playerAddr)

	// Breeding bumps the mint counter before it checks URI uniqueness; the
	// snapshot must throw that bump away when the operation fails.
	if _, err := env.node.Breed(playerAddr, parentA.ID, parentB.ID, "Dup", taken, 99, 600); !errors.Is(err, beast.ErrDuplicateURI) {
		t.Fatalf("expected duplicate URI rejection, got %v", err)
	}

	cfg, err = env.node.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.TotalMinted != mintedBefore {
		t.Fatalf("mint counter leaked: %d -> %d", mintedBefore, cfg.TotalMinted)
	}
	if got := env.balance(playerAddr); got != balanceBefore {
		t.Fatalf("balance changed on failed operation: %d -> %d", balanceBefore, got)
	}
}

func TestNodeTransferAndRepair(t *testing.T) {
	env := newNodeEnv(t)
	minted := env.mint(playerAddr, "Ember", 42)

	if err := env.node.UpdateOwner(playerAddr, minted.ID, rivalAddr); err != nil {
		t.Fatalf("update owner: %v", err)
	}
	moved, err := env.node.GetBeast(minted.ID)
	if err != nil {
		t.Fatalf("get beast: %v", err)
	}
	if moved.Owner != rivalAddr {
		t.Fatalf("owner not updated: %x", moved.Owner)
	}
	if moved.Traits != minted.Traits || moved.RarityScore != minted.RarityScore {
		t.Fatalf("transfer must not disturb the record")
	}
	if err := env.node.UpdateOwner(playerAddr, minted.ID, playerAddr); !errors.Is(err, beast.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner from previous owner, got %v", err)
	}

	if err := env.node.RepairAccount(playerAddr, minted.ID, moved.RarityScore); !errors.Is(err, beast.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-authority, got %v", err)
	}
	if err := env.node.RepairAccount(genAuthority, minted.ID, moved.RarityScore+5); !errors.Is(err, beast.ErrInvalidRarityScore) {
		t.Fatalf("expected ErrInvalidRarityScore, got %v", err)
	}
	if err := env.node.RepairAccount(genAuthority, minted.ID, moved.RarityScore); err != nil {
		t.Fatalf("repair with the recomputed sum: %v", err)
	}
}

func TestNodeConfigGovernance(t *testing.T) {
	env := newNodeEnv(t)

	cooldown := int64(60)
	if err := env.node.UpdateConfig(genAuthority, params.Changes{ActivityCooldown: &cooldown}, 0); err != nil {
		t.Fatalf("immediate update: %v", err)
	}
	cfg, err := env.node.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.ActivityCooldown != 60 {
		t.Fatalf("immediate change not applied: %d", cfg.ActivityCooldown)
	}

	rate := uint64(25)
	if err := env.node.UpdateConfig(rivalAddr, params.Changes{RewardRate: &rate}, 500); !errors.Is(err, params.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := env.node.UpdateConfig(genAuthority, params.Changes{RewardRate: &rate}, 500); err != nil {
		t.Fatalf("schedule critical update: %v", err)
	}

	cfg, err = env.node.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.RewardRate != 10 {
		t.Fatalf("critical change applied early: %d", cfg.RewardRate)
	}
	if cfg.Pending == nil || cfg.Pending.ActivationTime != env.clock+500 {
		t.Fatalf("pending update not recorded: %+v", cfg.Pending)
	}

	env.advance(500)
	cfg, err = env.node.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.RewardRate != 25 || cfg.Pending != nil {
		t.Fatalf("activation did not land: rate=%d pending=%v", cfg.RewardRate, cfg.Pending)
	}

	// Idempotent once applied.
	cfg, err = env.node.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.RewardRate != 25 || cfg.Pending != nil {
		t.Fatalf("activation must persist")
	}
}

func TestNodeCombatFlow(t *testing.T) {
	env := newNodeEnv(t)

	challenger := env.mint(playerAddr, "Fang", 11)
	opponent := env.mint(rivalAddr, "Claw", 12)

	if _, _, err := env.node.UnlockAbility(playerAddr, challenger.ID, 0, 1, 1000); err != nil {
		t.Fatalf("unlock challenger ability: %v", err)
	}
	if _, _, err := env.node.UnlockAbility(rivalAddr, opponent.ID, 0, 2, 1000); err != nil {
		t.Fatalf("unlock opponent ability: %v", err)
	}
	if got := env.balance(playerAddr); got != 1_000_000-1000 {
		t.Fatalf("unlock cost not settled: %d", got)
	}

	supplyBefore := env.supply()
	session, err := env.node.InitiateCombat(playerAddr, 1, challenger.ID, opponent.ID, 100)
	if err != nil {
		t.Fatalf("initiate combat: %v", err)
	}
	if session.Status != types.CombatActive || session.EscrowedAmount != 100 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if got := env.balance(playerAddr); got != 1_000_000-1000-100 {
		t.Fatalf("challenger wager not escrowed: %d", got)
	}

	for session.Status == types.CombatActive {
		executor := playerAddr
		if session.TurnCount%2 == 1 {
			executor = rivalAddr
		}
		next, _, err := env.node.ExecuteCombatTurn(executor, 1, 0)
		if err != nil {
			t.Fatalf("turn %d: %v", session.TurnCount, err)
		}
		session = next
	}

	resolved, err := env.node.ResolveCombat(rivalAddr, 1)
	if err != nil {
		t.Fatalf("resolve combat: %v", err)
	}
	if _, err := env.node.CombatSession(1); !errors.Is(err, combat.ErrSessionNotFound) {
		t.Fatalf("session should be deleted after resolve, got %v", err)
	}

	var burned uint64
	if resolved.Status != types.CombatDraw {
		pot := resolved.EscrowedAmount
		burned = pot - pot*90/100
	}
	if got := env.supply(); got != supplyBefore-burned {
		t.Fatalf("supply after combat: got %d, want %d less than %d", got, burned, supplyBefore)
	}

	// Escrow must be fully drained either way.
	total := env.balance(playerAddr) + env.balance(rivalAddr)
	if want := 2_000_000 - 2*1000 - burned; total != want {
		t.Fatalf("participant balances sum to %d, want %d", total, want)
	}

	after, err := env.node.GetBeast(challenger.ID)
	if err != nil {
		t.Fatalf("get challenger: %v", err)
	}
	if after.Combat.InCombat {
		t.Fatalf("challenger still marked in combat")
	}
	if after.Combat.LastCombatAt != env.clock {
		t.Fatalf("combat cooldown anchor not set")
	}
}

func TestNodeAbilityUpgrade(t *testing.T) {
	env := newNodeEnv(t)
	minted := env.mint(playerAddr, "Fang", 11)

	if _, _, err := env.node.UpgradeAbility(playerAddr, minted.ID, 0, 500); !errors.Is(err, beast.ErrAbilityNotUnlocked) {
		t.Fatalf("expected locked slot rejection, got %v", err)
	}
	if _, _, err := env.node.UnlockAbility(playerAddr, minted.ID, 0, 3, 1000); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	upgraded, cost, err := env.node.UpgradeAbility(playerAddr, minted.ID, 0, 500)
	if err != nil {
		t.Fatalf("upgrade ability: %v", err)
	}
	if cost != 500 {
		t.Fatalf("level-one upgrade should cost the base 500, got %d", cost)
	}
	if upgraded.AbilityLevels[0] != 2 {
		t.Fatalf("ability level not raised: %d", upgraded.AbilityLevels[0])
	}
}

func TestNodeJournalsCommittedOperations(t *testing.T) {
	env := newNodeEnv(t)
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer store.Close()
	env.node.SetJournal(store)

	feed, cancel := store.Subscribe(4)
	defer cancel()

	minted := env.mint(playerAddr, "Ember", 42)

	entries, err := store.Read(0, 10)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != "beast.minted" {
		t.Fatalf("expected one beast.minted entry, got %+v", entries)
	}
	live := <-feed
	if live.Type != "beast.minted" {
		t.Fatalf("live feed delivered %q", live.Type)
	}

	headBefore, _ := store.Head()
	// A rejected operation must not reach the journal.
	if _, err := env.node.Mint(playerAddr, "Copy", minted.MetadataURI, 43); !errors.Is(err, beast.ErrDuplicateURI) {
		t.Fatalf("expected duplicate URI rejection, got %v", err)
	}
	headAfter, _ := store.Head()
	if headAfter != headBefore {
		t.Fatalf("failed operation journaled: %d -> %d", headBefore, headAfter)
	}
}
