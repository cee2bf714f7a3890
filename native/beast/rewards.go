package beast

// AccrueRewards computes the reward units earned since the last anchor
// timestamp. A beast that has never acted (lastAt == 0) accrues nothing; its
// first activity only anchors the clock. Elapsed time running backwards is an
// arithmetic underflow, never a silent zero.
func AccrueRewards(lastAt, now int64, rate uint64) (uint64, error) {
	if lastAt <= 0 {
		return 0, nil
	}
	if now < lastAt {
		return 0, ErrArithmeticUnderflow
	}
	return checkedMul(uint64(now-lastAt), rate)
}
