package alerts

import (
	"sync"
	"time"
)

// CooldownTracker records the last firing time per (rule, subject) pair and
// suppresses repeat firings within a rule's cooldown window. All methods
// share one lock so a concurrent check-and-mark for the same key cannot
// both pass, and a purge cannot race a refresh.
type CooldownTracker struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
}

func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{lastFired: make(map[string]time.Time)}
}

func cooldownKey(ruleID, subjectID string) string {
	return ruleID + ":" + subjectID
}

// Allow reports whether the (rule, subject) pair is clear to fire at now,
// and if so marks it as fired. Check and mark are a single critical section:
// of N concurrent callers within one window exactly one gets true.
func (c *CooldownTracker) Allow(ruleID, subjectID string, cooldown time.Duration, now time.Time) bool {
	key := cooldownKey(ruleID, subjectID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastFired[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	c.lastFired[key] = now
	return true
}

// OnCooldown reports the suppression state without marking.
func (c *CooldownTracker) OnCooldown(ruleID, subjectID string, cooldown time.Duration, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastFired[cooldownKey(ruleID, subjectID)]
	return ok && now.Sub(last) < cooldown
}

// PurgeExpired drops entries whose last firing is older than retention and
// returns how many were removed.
func (c *CooldownTracker) PurgeExpired(now time.Time, retention time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, last := range c.lastFired {
		if now.Sub(last) > retention {
			delete(c.lastFired, key)
			removed++
		}
	}
	return removed
}

func (c *CooldownTracker) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastFired)
}
