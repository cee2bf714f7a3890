package beast

// UpgradeCost prices a single-step trait upgrade. The formula is
// base * (scaling + value) / scaling, the integer form of
// base * (1 + value/scaling); both sides of the RPC preview and the engine use
// this exact function so quoted and charged costs match bit for bit.
func UpgradeCost(traitValue uint8, baseCost, scalingFactor uint64) (uint64, error) {
	if scalingFactor == 0 {
		return 0, ErrArithmeticOverflow
	}
	scaled, err := checkedAdd(scalingFactor, uint64(traitValue))
	if err != nil {
		return 0, err
	}
	numerator, err := checkedMul(baseCost, scaled)
	if err != nil {
		return 0, err
	}
	return numerator / scalingFactor, nil
}

// BreedingCost prices a breed of two parents: the base cost compounded by the
// generation multiplier raised to the older parent's generation.
func BreedingCost(baseCost, generationMultiplier uint64, maxParentGeneration uint8) (uint64, error) {
	factor, err := checkedPow(generationMultiplier, maxParentGeneration)
	if err != nil {
		return 0, err
	}
	return checkedMul(baseCost, factor)
}

// AbilityUpgradeCost scales the configured upgrade cost by the current level,
// so each level costs more than the last.
func AbilityUpgradeCost(baseCost uint64, currentLevel uint8) (uint64, error) {
	return checkedMul(baseCost, uint64(currentLevel))
}
