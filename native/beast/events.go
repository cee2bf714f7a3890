package beast

import (
	"encoding/hex"
	"strconv"

	"zenbeasts/core/types"
)

const (
	EventTypeBeastMinted     = "beast.minted"
	EventTypeActivity        = "beast.activity"
	EventTypeRewardsClaimed  = "beast.rewards_claimed"
	EventTypeTraitUpgraded   = "beast.trait_upgraded"
	EventTypeBeastBred       = "beast.bred"
	EventTypeTransferred     = "beast.transferred"
	EventTypeRepaired        = "beast.repaired"
	EventTypeAbilityUnlocked = "beast.ability_unlocked"
	EventTypeAbilityUpgraded = "beast.ability_upgraded"
)

// NewMintedEvent returns the canonical payload for a freshly created beast,
// whether minted directly or bred.
func NewMintedEvent(b *types.BeastAccount, thresholds [5]uint64, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	if b != nil {
		for i := 0; i < types.CoreTraitCount; i++ {
			attrs["trait"+strconv.Itoa(i)] = strconv.FormatUint(uint64(b.Traits[i]), 10)
		}
		attrs["tier"] = TierFor(b.RarityScore, thresholds).String()
		attrs["generation"] = strconv.FormatUint(uint64(b.Generation), 10)
		attrs["metadataUri"] = b.MetadataURI
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeBeastMinted, Attributes: attrs}
}

// NewActivityEvent captures one performed activity and the rewards it accrued.
func NewActivityEvent(b *types.BeastAccount, activityType uint8, rewardsEarned uint64, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	attrs["activityType"] = strconv.FormatUint(uint64(activityType), 10)
	attrs["rewardsEarned"] = strconv.FormatUint(rewardsEarned, 10)
	if b != nil {
		attrs["activityCount"] = strconv.FormatUint(uint64(b.ActivityCount), 10)
		attrs["pendingRewards"] = strconv.FormatUint(b.PendingRewards, 10)
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeActivity, Attributes: attrs}
}

// NewRewardsClaimedEvent captures a successful claim payout.
func NewRewardsClaimedEvent(b *types.BeastAccount, recipient [20]byte, amount uint64, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	attrs["recipient"] = hex.EncodeToString(recipient[:])
	attrs["amount"] = strconv.FormatUint(amount, 10)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeRewardsClaimed, Attributes: attrs}
}

// NewTraitUpgradedEvent carries the old and new value so an indexer can
// reconstruct the trait vector without reading state.
func NewTraitUpgradedEvent(b *types.BeastAccount, traitIndex, oldValue, newValue uint8, costPaid uint64, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	attrs["traitIndex"] = strconv.FormatUint(uint64(traitIndex), 10)
	attrs["oldValue"] = strconv.FormatUint(uint64(oldValue), 10)
	attrs["newValue"] = strconv.FormatUint(uint64(newValue), 10)
	attrs["costPaid"] = strconv.FormatUint(costPaid, 10)
	if b != nil {
		attrs["newRarity"] = strconv.FormatUint(b.RarityScore, 10)
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeTraitUpgraded, Attributes: attrs}
}

// NewBredEvent links both parents to the offspring.
func NewBredEvent(parentA, parentB [32]byte, offspring *types.BeastAccount, costPaid uint64, timestamp int64) *types.Event {
	attrs := beastAttrs(offspring)
	attrs["parentA"] = hex.EncodeToString(parentA[:])
	attrs["parentB"] = hex.EncodeToString(parentB[:])
	if offspring != nil {
		attrs["generation"] = strconv.FormatUint(uint64(offspring.Generation), 10)
	}
	attrs["costPaid"] = strconv.FormatUint(costPaid, 10)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeBeastBred, Attributes: attrs}
}

// NewTransferredEvent records an ownership handover.
func NewTransferredEvent(b *types.BeastAccount, from, to [20]byte, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	attrs["from"] = hex.EncodeToString(from[:])
	attrs["to"] = hex.EncodeToString(to[:])
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeTransferred, Attributes: attrs}
}

// NewRepairedEvent records an authority rarity correction.
func NewRepairedEvent(b *types.BeastAccount, oldRarity, newRarity uint64, authority [20]byte, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	attrs["oldRarity"] = strconv.FormatUint(oldRarity, 10)
	attrs["newRarity"] = strconv.FormatUint(newRarity, 10)
	attrs["authority"] = hex.EncodeToString(authority[:])
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeRepaired, Attributes: attrs}
}

// NewAbilityUnlockedEvent records a slot gaining its ability.
func NewAbilityUnlockedEvent(b *types.BeastAccount, traitIndex, abilityID uint8, costPaid uint64, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	attrs["traitIndex"] = strconv.FormatUint(uint64(traitIndex), 10)
	attrs["abilityId"] = strconv.FormatUint(uint64(abilityID), 10)
	attrs["costPaid"] = strconv.FormatUint(costPaid, 10)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeAbilityUnlocked, Attributes: attrs}
}

// NewAbilityUpgradedEvent records an ability level step.
func NewAbilityUpgradedEvent(b *types.BeastAccount, traitIndex, oldLevel, newLevel uint8, costPaid uint64, timestamp int64) *types.Event {
	attrs := beastAttrs(b)
	attrs["traitIndex"] = strconv.FormatUint(uint64(traitIndex), 10)
	attrs["oldLevel"] = strconv.FormatUint(uint64(oldLevel), 10)
	attrs["newLevel"] = strconv.FormatUint(uint64(newLevel), 10)
	attrs["costPaid"] = strconv.FormatUint(costPaid, 10)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeAbilityUpgraded, Attributes: attrs}
}

func beastAttrs(b *types.BeastAccount) map[string]string {
	attrs := make(map[string]string)
	if b == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(b.ID[:])
	attrs["owner"] = hex.EncodeToString(b.Owner[:])
	attrs["rarityScore"] = strconv.FormatUint(b.RarityScore, 10)
	return attrs
}
