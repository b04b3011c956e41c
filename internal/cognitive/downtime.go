package cognitive

import (
	"slices"
	"time"

	"github.com/user/cognitive/pkg/llm"
)

// The client owns its downtime log and preference cache. They change only
// through the methods below, and callers only ever see copies.

func (c *Client) recordDowntime(d Downtime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downtimes = append(c.downtimes, d)
}

// pruneDowntimes drops expired entries from both the local log and the
// cached preferences.
func (c *Client) pruneDowntimes(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downtimes = ActiveDowntimes(c.downtimes, now, c.threshold)
	if c.prefs != nil {
		c.prefs.Downtimes = ActiveDowntimes(c.prefs.Downtimes, now, c.threshold)
	}
}

func (c *Client) replacePreferences(p *Preferences) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs = p.Clone()
}

func (c *Client) cachedPreferences() *Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs.Clone()
}

// Downtimes returns a copy of the downtimes recorded by this client.
func (c *Client) Downtimes() []Downtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.downtimes)
}

// persistable returns the cached preferences with the local log merged into
// their downtimes, as saved after a fallback.
func (c *Client) persistable() *Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.prefs.Clone()
	if p == nil {
		p = &Preferences{Best: []llm.Ref{}, Fast: []llm.Ref{}}
	}
	p.Downtimes = MergeDowntimes(p.Downtimes, c.downtimes)
	return p
}
