package rebalancing

import (
	"sync"
	"time"
)

// DefaultAlertCooldown is the minimum gap between manual-signal notifications
const DefaultAlertCooldown = 15 * time.Minute

// AlertCooldown remembers when the last manual signal went out. It lives for
// the process; a restart forgets it.
type AlertCooldown struct {
	mu     sync.Mutex
	period time.Duration
	last   time.Time
}

// NewAlertCooldown creates a tracker. Non-positive periods use DefaultAlertCooldown.
func NewAlertCooldown(period time.Duration) *AlertCooldown {
	if period <= 0 {
		period = DefaultAlertCooldown
	}
	return &AlertCooldown{period: period}
}

// CanAlert reports whether a notification may be sent at now
func (c *AlertCooldown) CanAlert(now time.Time, credentialsConfigured bool) bool {
	if !credentialsConfigured {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.IsZero() || now.Sub(c.last) > c.period
}

// Record marks now as the last alert time
func (c *AlertCooldown) Record(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = now
}

// LastAlert returns the last recorded alert time (zero if none)
func (c *AlertCooldown) LastAlert() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Period returns the configured cooldown
func (c *AlertCooldown) Period() time.Duration {
	return c.period
}
