package combat

import (
	"encoding/binary"
	"math"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"zenbeasts/core/types"
)

// Ability types correspond to the core trait slots: the slot an ability
// occupies decides both the trait that powers it and its combat effect.
const (
	AbilityStrength = 0 // physical damage
	AbilityAgility  = 1 // speed strikes
	AbilityWisdom   = 2 // direct damage, unmodified
	AbilityVitality = 3 // self-healing
)

// escrowDomain separates per-session escrow addresses from every other
// derived key.
var escrowDomain = []byte("zenbeasts/combat/escrow")

// DeriveCombatSeed folds the session identity and the initiation time into
// the seed every turn draw derives from. Both participants can recompute it
// from the initiation event.
func DeriveCombatSeed(sessionID uint64, challenger, opponent [32]byte, now int64) uint64 {
	buf := make([]byte, 0, 8+32+32+8)
	buf = binary.LittleEndian.AppendUint64(buf, sessionID)
	buf = append(buf, challenger[:]...)
	buf = append(buf, opponent[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(now))
	digest := ethcrypto.Keccak256(buf)
	return binary.LittleEndian.Uint64(digest[:8])
}

// EscrowAddress derives the session's wager escrow account. Nobody holds a
// key for it; only resolve moves funds out.
func EscrowAddress(sessionID uint64) [20]byte {
	buf := make([]byte, 0, len(escrowDomain)+8)
	buf = append(buf, escrowDomain...)
	buf = binary.LittleEndian.AppendUint64(buf, sessionID)
	digest := ethcrypto.Keccak256(buf)
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// TurnEffect computes the damage (or healing, for vitality) of one combat
// turn. A keccak draw over (seed, turn, abilityType) yields a deterministic
// 80-120% factor over the trait x level base; the type factor doubles
// strength, scales agility and vitality by 3/2, and leaves wisdom flat.
// Inputs are byte-bounded, so the uint32 intermediate cannot overflow; the
// result clamps into uint16.
func TurnEffect(combatSeed uint64, turnCount, attackerTrait, abilityLevel, abilityType uint8) (uint16, error) {
	buf := make([]byte, 0, 10)
	buf = binary.LittleEndian.AppendUint64(buf, combatSeed)
	buf = append(buf, turnCount, abilityType)
	digest := ethcrypto.Keccak256(buf)
	factor := uint32(digest[0]%41) + 80

	base := uint32(attackerTrait) * uint32(abilityLevel)
	switch abilityType {
	case AbilityStrength:
		base *= 2
	case AbilityAgility, AbilityVitality:
		base = base * 3 / 2
	case AbilityWisdom:
	default:
		return 0, ErrInvalidAbilityType
	}

	effect := base * factor / 100
	if effect > math.MaxUint16 {
		effect = math.MaxUint16
	}
	return uint16(effect), nil
}

// EnergyCost prices one ability use: a flat base plus two points per level,
// capped at the energy ceiling.
func EnergyCost(abilityLevel uint8) uint8 {
	cost := uint16(types.BaseEnergy) + uint16(abilityLevel)*types.EnergyScale
	if cost > types.MaxEnergy {
		return types.MaxEnergy
	}
	return uint8(cost)
}
