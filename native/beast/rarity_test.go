package beast

import (
	"testing"

	"zenbeasts/core/types"
)

func TestScoreSumsCoreTraitsOnly(t *testing.T) {
	var traits [types.TraitCount]byte
	traits[types.TraitStrength] = 10
	traits[types.TraitAgility] = 20
	traits[types.TraitWisdom] = 30
	traits[types.TraitVitality] = 40
	for i := types.CoreTraitCount; i < types.TraitCount; i++ {
		traits[i] = 255
	}
	score, err := Score(traits)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 100 {
		t.Fatalf("score %d, want 100 (reserved layers must not count)", score)
	}

	var maxed [types.TraitCount]byte
	for i := range maxed {
		maxed[i] = 255
	}
	score, err = Score(maxed)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 1020 {
		t.Fatalf("max score %d, want 1020", score)
	}
}

func TestTierFor(t *testing.T) {
	thresholds := [5]uint64{400, 600, 800, 950, 1020}
	cases := []struct {
		score uint64
		want  Tier
	}{
		{0, TierCommon},
		{599, TierCommon},
		{600, TierUncommon},
		{799, TierUncommon},
		{800, TierRare},
		{949, TierRare},
		{950, TierEpic},
		{1019, TierEpic},
		{1020, TierLegendary},
	}
	for _, tc := range cases {
		if got := TierFor(tc.score, thresholds); got != tc.want {
			t.Fatalf("score %d: tier %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestTierString(t *testing.T) {
	want := map[Tier]string{
		TierCommon:    "Common",
		TierUncommon:  "Uncommon",
		TierRare:      "Rare",
		TierEpic:      "Epic",
		TierLegendary: "Legendary",
	}
	for tier, name := range want {
		if tier.String() != name {
			t.Fatalf("tier %d renders %q, want %q", tier, tier.String(), name)
		}
	}
}
