package resolver

import "lpbacktest/internal/tickmath"

// Candidates yields the ticks probed when a snapshot is unusable: the origin,
// then origin-s, origin+s, origin-2s, origin+2s and so on. Every position in
// that order consumes one attempt, including candidates outside the usable
// tick bounds, which are skipped.
type Candidates struct {
	origin      int32
	spacing     int32
	maxAttempts int
	attempt     int
}

// NewCandidates returns a sequence of at most maxAttempts probes around origin.
func NewCandidates(origin, spacing int32, maxAttempts int) *Candidates {
	if spacing <= 0 {
		spacing = 1
	}
	return &Candidates{origin: origin, spacing: spacing, maxAttempts: maxAttempts}
}

// Next returns the next in-bounds candidate, or false once the budget is spent.
func (c *Candidates) Next() (int32, bool) {
	for c.attempt < c.maxAttempts {
		offset := c.offset(c.attempt)
		c.attempt++
		tick := int64(c.origin) + offset
		if tick < int64(tickmath.MinUsableTick) || tick > int64(tickmath.MaxUsableTick) {
			continue
		}
		return int32(tick), true
	}
	return 0, false
}

// Attempts reports how many positions of the sequence have been consumed.
func (c *Candidates) Attempts() int {
	return c.attempt
}

// Reset rewinds the sequence to the origin.
func (c *Candidates) Reset() {
	c.attempt = 0
}

func (c *Candidates) offset(i int) int64 {
	if i == 0 {
		return 0
	}
	step := int64((i + 1) / 2)
	if i%2 == 1 {
		step = -step
	}
	return step * int64(c.spacing)
}
