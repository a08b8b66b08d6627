package session

import (
	"time"

	"github.com/hexel-dev/chess-arena/internal/rules"
)

// The clock is never decremented by a timer. Remaining time is derived on
// read from the last commit anchor and written back only at commit points:
// right before a move is applied, when a seat is vacated, and at timeout
// finalization.

func (c *Clock) remaining(color rules.Color) int64 {
	if color == rules.White {
		return c.WhiteRemainingMs
	}
	return c.BlackRemainingMs
}

func (c *Clock) setRemaining(color rules.Color, ms int64) {
	if color == rules.White {
		c.WhiteRemainingMs = ms
	} else {
		c.BlackRemainingMs = ms
	}
}

// effectiveRemaining is the remaining time for a color as observed at now,
// floored at zero. Only the active color of a running clock drains.
func (c *Clock) effectiveRemaining(color rules.Color, now time.Time) int64 {
	rem := c.remaining(color)
	if c.Running && c.ActiveColor == color && c.LastTickAt != nil {
		rem -= now.Sub(*c.LastTickAt).Milliseconds()
	}
	if rem < 0 {
		return 0
	}
	return rem
}

// commit writes the derived remaining time of the active color back into
// stored state and re-anchors the tick point.
func (c *Clock) commit(now time.Time) {
	if !c.Running || c.ActiveColor == "" || c.LastTickAt == nil {
		return
	}
	c.setRemaining(c.ActiveColor, c.effectiveRemaining(c.ActiveColor, now))
	t := now
	c.LastTickAt = &t
}

// expired reports whether the active color has run out of time as of now.
func (c *Clock) expired(now time.Time) bool {
	return c.Running && c.ActiveColor != "" && c.effectiveRemaining(c.ActiveColor, now) <= 0
}

// start anchors the clock for the given color at now.
func (c *Clock) start(color rules.Color, now time.Time) {
	c.ActiveColor = color
	c.Running = true
	t := now
	c.LastTickAt = &t
}

// pause commits the exact elapsed time and stops draining without losing
// the active color.
func (c *Clock) pause(now time.Time) {
	c.commit(now)
	c.Running = false
	c.LastTickAt = nil
}

// stop fully halts the clock at game end.
func (c *Clock) stop() {
	c.Running = false
	c.ActiveColor = ""
	c.LastTickAt = nil
}

// credit adds the per-move increment to the given color.
func (c *Clock) credit(color rules.Color, ms int64) {
	if ms <= 0 {
		return
	}
	c.setRemaining(color, c.remaining(color)+ms)
}
