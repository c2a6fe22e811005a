package model

// FeeCheckpoint is the fee growth inside a position's range at its last accrual.
// TickLower and TickUpper are the requested range and form the key;
// AlignedLower and AlignedUpper are the ticks the growth was measured over.
type FeeCheckpoint struct {
	Pool             string `json:"pool"`
	TickLower        int32  `json:"tick_lower"`
	TickUpper        int32  `json:"tick_upper"`
	AlignedLower     int32  `json:"aligned_tick_lower"`
	AlignedUpper     int32  `json:"aligned_tick_upper"`
	Liquidity        string `json:"liquidity"`
	Block            uint64 `json:"block"`
	FeeGrowthInside0 string `json:"fee_growth_inside0_x128"`
	FeeGrowthInside1 string `json:"fee_growth_inside1_x128"`
	UpdatedAt        string `json:"updated_at"`
}

// Key identifies the position a checkpoint belongs to.
func (c FeeCheckpoint) Key() string {
	return CheckpointKey(c.Pool, c.TickLower, c.TickUpper)
}
