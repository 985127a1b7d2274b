package persistence

import "time"

// Clock yields record timestamps. Both backends store microsecond precision in
// UTC, so timestamps are truncated here to keep the two modes indistinguishable.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Touch returns a modification time strictly after prev.
func (c Clock) Touch(prev time.Time) time.Time {
	now := c()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}
