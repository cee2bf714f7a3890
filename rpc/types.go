package rpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"zenbeasts/core/types"
	"zenbeasts/crypto"
	"zenbeasts/native/params"
)

// BeastResult is the RPC view of a beast record. Parents are present only for
// bred beasts; the rarity tier is filled on direct lookups, where the
// governing thresholds are at hand.
type BeastResult struct {
	ID             string   `json:"id"`
	Owner          string   `json:"owner"`
	Name           string   `json:"name"`
	Traits         []uint8  `json:"traits"`
	RarityScore    uint64   `json:"rarityScore"`
	RarityTier     string   `json:"rarityTier,omitempty"`
	LastActivityAt int64    `json:"lastActivityAt"`
	ActivityCount  uint32   `json:"activityCount"`
	PendingRewards uint64   `json:"pendingRewards"`
	Claimable      *uint64  `json:"claimableRewards,omitempty"`
	Parents        []string `json:"parents,omitempty"`
	Generation     uint8    `json:"generation"`
	LastBreedingAt int64    `json:"lastBreedingAt"`
	BreedingCount  uint8    `json:"breedingCount"`
	MetadataURI    string   `json:"metadataUri"`
	Abilities      []uint8  `json:"abilities"`
	AbilityLevels  []uint8  `json:"abilityLevels"`
	HP             uint16   `json:"hp"`
	Energy         uint8    `json:"energy"`
	Wins           uint32   `json:"wins"`
	Losses         uint32   `json:"losses"`
	LastCombatAt   int64    `json:"lastCombatAt"`
	InCombat       bool     `json:"inCombat"`
}

// AccountResult is the RPC view of a token account.
type AccountResult struct {
	Address    string `json:"address"`
	Nonce      uint64 `json:"nonce"`
	BalanceZen string `json:"balanceZen"`
}

// CombatResult is the RPC view of a combat session.
type CombatResult struct {
	SessionID       uint64 `json:"sessionId"`
	Challenger      string `json:"challenger"`
	Opponent        string `json:"opponent"`
	ChallengerOwner string `json:"challengerOwner"`
	OpponentOwner   string `json:"opponentOwner"`
	WagerAmount     uint64 `json:"wagerAmount"`
	EscrowedAmount  uint64 `json:"escrowedAmount"`
	TurnCount       uint8  `json:"turnCount"`
	ChallengerHP    uint16 `json:"challengerHp"`
	OpponentHP      uint16 `json:"opponentHp"`
	LastTurnAt      int64  `json:"lastTurnAt"`
	Status          string `json:"status"`
}

// ConfigResult is the RPC view of the economy configuration.
type ConfigResult struct {
	Authority   string `json:"authority"`
	Treasury    string `json:"treasury"`
	RewardToken string `json:"rewardToken"`

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

	Pending *PendingResult `json:"pending,omitempty"`
}

// PendingResult mirrors a scheduled critical change.
type PendingResult struct {
	Changes        params.Changes `json:"changes"`
	ActivationTime int64          `json:"activationTime"`
}

func formatBeast(b *types.BeastAccount) BeastResult {
	out := BeastResult{
		ID:             formatBeastID(b.ID),
		Owner:          formatAddress(b.Owner),
		Name:           b.Name,
		Traits:         append([]uint8(nil), b.Traits[:]...),
		RarityScore:    b.RarityScore,
		LastActivityAt: b.LastActivityAt,
		ActivityCount:  b.ActivityCount,
		PendingRewards: b.PendingRewards,
		Generation:     b.Generation,
		LastBreedingAt: b.LastBreedingAt,
		BreedingCount:  b.BreedingCount,
		MetadataURI:    b.MetadataURI,
		Abilities:      append([]uint8(nil), b.Abilities[:]...),
		AbilityLevels:  append([]uint8(nil), b.AbilityLevels[:]...),
		HP:             b.Combat.HP,
		Energy:         b.Combat.Energy,
		Wins:           b.Combat.Wins,
		Losses:         b.Combat.Losses,
		LastCombatAt:   b.Combat.LastCombatAt,
		InCombat:       b.Combat.InCombat,
	}
	if !b.Genesis() {
		out.Parents = []string{formatBeastID(b.Parents[0]), formatBeastID(b.Parents[1])}
	}
	return out
}

func formatCombat(s *types.CombatSession) CombatResult {
	return CombatResult{
		SessionID:       s.SessionID,
		Challenger:      formatBeastID(s.Challenger),
		Opponent:        formatBeastID(s.Opponent),
		ChallengerOwner: formatAddress(s.ChallengerOwner),
		OpponentOwner:   formatAddress(s.OpponentOwner),
		WagerAmount:     s.WagerAmount,
		EscrowedAmount:  s.EscrowedAmount,
		TurnCount:       s.TurnCount,
		ChallengerHP:    s.ChallengerHP,
		OpponentHP:      s.OpponentHP,
		LastTurnAt:      s.LastTurnAt,
		Status:          s.Status.String(),
	}
}

func formatConfig(cfg *params.Config) ConfigResult {
	out := ConfigResult{
		Authority:              formatAddress(cfg.Authority),
		Treasury:               formatAddress(cfg.Treasury),
		RewardToken:            cfg.RewardToken,
		ActivityCooldown:       cfg.ActivityCooldown,
		BreedingCooldown:       cfg.BreedingCooldown,
		MaxBreedingCount:       cfg.MaxBreedingCount,
		UpgradeBaseCost:        cfg.UpgradeBaseCost,
		UpgradeScalingFactor:   cfg.UpgradeScalingFactor,
		BreedingBaseCost:       cfg.BreedingBaseCost,
		GenerationMultiplier:   cfg.GenerationMultiplier,
		RewardRate:             cfg.RewardRate,
		BurnPercentage:         cfg.BurnPercentage,
		RarityThresholds:       cfg.RarityThresholds,
		AbilityUnlockCost:      cfg.AbilityUnlockCost,
		AbilityUpgradeCost:     cfg.AbilityUpgradeCost,
		CombatCooldown:         cfg.CombatCooldown,
		MinCombatWager:         cfg.MinCombatWager,
		MaxCombatWager:         cfg.MaxCombatWager,
		CombatTurnTimeout:      cfg.CombatTurnTimeout,
		CombatWinnerPercentage: cfg.CombatWinnerPercentage,
		TotalMinted:            cfg.TotalMinted,
	}
	if cfg.Pending != nil {
		out.Pending = &PendingResult{
			Changes:        cfg.Pending.Changes,
			ActivationTime: cfg.Pending.ActivationTime,
		}
	}
	return out
}

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Bytes(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(addr).String()
}

func parseBeastID(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("beast id required")
	}
	cleaned := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(cleaned) != 64 {
		return out, fmt.Errorf("beast id must be 32 bytes")
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded)
	return out, nil
}

func formatBeastID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}
