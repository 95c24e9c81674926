package mockdev

import "time"

// ManualClock is a clock whose time only moves when the test advances it, so the
// timing of the suspend/resume cycle can be exercised without sleeping.
type ManualClock struct {
	now time.Time
}

func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(1000, 0)}
}

func (c *ManualClock) Now() time.Time { return c.now }

func (c *ManualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
