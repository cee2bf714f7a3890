package beast

import "zenbeasts/core/types"

// Tier buckets a rarity score against the configured thresholds.
type Tier uint8

const (
	TierCommon Tier = iota
	TierUncommon
	TierRare
	TierEpic
	TierLegendary
)

// String renders the tier for events and RPC responses.
func (t Tier) String() string {
	switch t {
	case TierLegendary:
		return "Legendary"
	case TierEpic:
		return "Epic"
	case TierRare:
		return "Rare"
	case TierUncommon:
		return "Uncommon"
	default:
		return "Common"
	}
}

// Score sums the four core trait values with checked addition. The width makes
// overflow impossible in practice, but cost and reward math share the same
// fail-instead-of-wrap discipline, so scoring does too.
func Score(traits [types.TraitCount]byte) (uint64, error) {
	score := uint64(0)
	for i := 0; i < types.CoreTraitCount; i++ {
		next, err := checkedAdd(score, uint64(traits[i]))
		if err != nil {
			return 0, err
		}
		score = next
	}
	return score, nil
}

// TierFor resolves a score against ascending thresholds; a score equal to a
// threshold belongs to the higher tier.
func TierFor(score uint64, thresholds [5]uint64) Tier {
	switch {
	case score >= thresholds[4]:
		return TierLegendary
	case score >= thresholds[3]:
		return TierEpic
	case score >= thresholds[2]:
		return TierRare
	case score >= thresholds[1]:
		return TierUncommon
	default:
		return TierCommon
	}
}
