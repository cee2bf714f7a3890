package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"zenbeasts/crypto"
	"zenbeasts/native/params"
)

// Spec is the genesis document: the one-time economy configuration plus the
// initial token supply and balances. Addresses are bech32 zen strings;
// amounts are base-10 strings so they survive JSON without precision loss.
type Spec struct {
	GenesisTime string            `json:"genesisTime"`
	Authority   string            `json:"authority"`
	Treasury    string            `json:"treasury"`
	RewardToken TokenSpec         `json:"rewardToken"`
	Params      ParamsSpec        `json:"params"`
	Alloc       map[string]string `json:"alloc,omitempty"`

	genesisTimestamp time.Time
	authorityAddr    [20]byte
	treasuryAddr     [20]byte
	initialSupply    *big.Int
	balances         map[[20]byte]*big.Int
	config           *params.Config
}

// TokenSpec describes the reward token the economy settles in.
type TokenSpec struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Decimals      uint8  `json:"decimals"`
	InitialSupply string `json:"initialSupply"`
}

// ParamsSpec carries the tunable economy parameters. Zero rarity thresholds
// fall back to the stock tiers.
type ParamsSpec struct {
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
}

// Load reads and validates a genesis spec. Unknown fields are rejected so a
// typo cannot silently drop a parameter.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis: spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read spec %q: %w", path, err)
	}
	spec, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis: spec %q: %w", path, err)
	}
	return spec, nil
}

// Parse decodes and validates a genesis spec held in memory.
func Parse(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	authority, err := crypto.DecodeAddress(s.Authority)
	if err != nil {
		return fmt.Errorf("authority: %w", err)
	}
	treasury, err := crypto.DecodeAddress(s.Treasury)
	if err != nil {
		return fmt.Errorf("treasury: %w", err)
	}
	s.authorityAddr = authority.Bytes()
	s.treasuryAddr = treasury.Bytes()

	if strings.TrimSpace(s.RewardToken.Symbol) == "" {
		return fmt.Errorf("rewardToken: symbol must be provided")
	}
	if s.RewardToken.Decimals > 18 {
		return fmt.Errorf("rewardToken: decimals must be 18 or fewer")
	}
	supply, err := parseAmount(s.RewardToken.InitialSupply)
	if err != nil {
		return fmt.Errorf("rewardToken.initialSupply: %w", err)
	}
	s.initialSupply = supply

	cfg := &params.Config{
		Authority:              s.authorityAddr,
		Treasury:               s.treasuryAddr,
		RewardToken:            strings.ToUpper(strings.TrimSpace(s.RewardToken.Symbol)),
		ActivityCooldown:       s.Params.ActivityCooldown,
		BreedingCooldown:       s.Params.BreedingCooldown,
		MaxBreedingCount:       s.Params.MaxBreedingCount,
		UpgradeBaseCost:        s.Params.UpgradeBaseCost,
		UpgradeScalingFactor:   s.Params.UpgradeScalingFactor,
		BreedingBaseCost:       s.Params.BreedingBaseCost,
		GenerationMultiplier:   s.Params.GenerationMultiplier,
		RewardRate:             s.Params.RewardRate,
		BurnPercentage:         s.Params.BurnPercentage,
		RarityThresholds:       s.Params.RarityThresholds,
		AbilityUnlockCost:      s.Params.AbilityUnlockCost,
		AbilityUpgradeCost:     s.Params.AbilityUpgradeCost,
		CombatCooldown:         s.Params.CombatCooldown,
		MinCombatWager:         s.Params.MinCombatWager,
		MaxCombatWager:         s.Params.MaxCombatWager,
		CombatTurnTimeout:      s.Params.CombatTurnTimeout,
		CombatWinnerPercentage: s.Params.CombatWinnerPercentage,
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	s.config = cfg

	balances := make(map[[20]byte]*big.Int, len(s.Alloc))
	total := new(big.Int)
	accounts := make([]string, 0, len(s.Alloc))
	for account := range s.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		addr, err := crypto.DecodeAddress(account)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		amount, err := parseAmount(s.Alloc[account])
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		raw := addr.Bytes()
		if _, dup := balances[raw]; dup {
			return fmt.Errorf("alloc[%q]: duplicate account", account)
		}
		balances[raw] = amount
		total.Add(total, amount)
	}
	if total.Cmp(supply) > 0 {
		return fmt.Errorf("alloc: balances %s exceed initial supply %s", total, supply)
	}
	s.balances = balances
	return nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Config returns the validated economy configuration.
func (s *Spec) Config() *params.Config { return s.config.Clone() }

// InitialSupply returns the circulating supply the ledger starts with.
func (s *Spec) InitialSupply() *big.Int { return new(big.Int).Set(s.initialSupply) }

// Balances returns the resolved genesis allocations.
func (s *Spec) Balances() map[[20]byte]*big.Int {
	out := make(map[[20]byte]*big.Int, len(s.balances))
	for addr, amount := range s.balances {
		out[addr] = new(big.Int).Set(amount)
	}
	return out
}

// Default produces a runnable starter spec for the given authority and
// treasury addresses; the daemon writes it on first run when no genesis file
// exists. The treasury receives the whole initial supply.
func Default(authority, treasury crypto.Address, now time.Time) *Spec {
	return &Spec{
		GenesisTime: now.UTC().Format(time.RFC3339),
		Authority:   authority.String(),
		Treasury:    treasury.String(),
		RewardToken: TokenSpec{
			Symbol:        "ZEN",
			Name:          "ZenBeasts Reward Token",
			Decimals:      0,
			InitialSupply: "1000000000",
		},
		Params: ParamsSpec{
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
		},
		Alloc: map[string]string{
			treasury.String(): "1000000000",
		},
	}
}

// Write marshals the spec to path with 0600 permissions.
func (s *Spec) Write(path string) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("genesis: encode spec: %w", err)
	}
	return os.WriteFile(path, append(raw, '\n'), 0o600)
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
