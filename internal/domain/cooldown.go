package domain

import (
	"fmt"
	"time"
)

// CooldownWindow is how long a user must wait after abandoning an attempt
const CooldownWindow = 24 * time.Hour

// CooldownRecord blocks new submissions for a user until CooldownUntil
type CooldownRecord struct {
	UserID        string    `json:"user_id"`
	CooldownUntil time.Time `json:"cooldown_until"`
}

// Active reports whether the record still blocks submissions at now.
func (c *CooldownRecord) Active(now time.Time) bool {
	return c != nil && now.Before(c.CooldownUntil)
}

// Remaining returns the time left on the cooldown, or zero.
func (c *CooldownRecord) Remaining(now time.Time) time.Duration {
	if !c.Active(now) {
		return 0
	}
	return c.CooldownUntil.Sub(now)
}

// CooldownStatus is the read shape for a user's cooldown
type CooldownStatus struct {
	UserID      string     `json:"user_id"`
	OnCooldown  bool       `json:"on_cooldown"`
	AvailableAt *time.Time `json:"available_at,omitempty"`
	RemainingMS int64      `json:"remaining_ms"`
	Remaining   string     `json:"remaining"`
}

// FormatRemaining renders a countdown like "23h 45m", "45m 30s" or "30s".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Ready"
	}
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
