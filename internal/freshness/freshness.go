// Package freshness reports how long ago each vault was last synced.
package freshness

import (
	"fmt"
	"os"
	"time"

	"github.com/choplin/agent-bridge/internal/vault"
)

// DefaultThreshold is the age after which a remote cache is stale.
const DefaultThreshold = 24 * time.Hour

// Never labels a vault that was never synced.
const Never = "never"

// Tracker derives freshness from filesystem modification times.
type Tracker struct {
	registry  *vault.Registry
	threshold time.Duration
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold overrides DefaultThreshold. Non-positive values are ignored.
func WithThreshold(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.threshold = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// New returns a Tracker for the vaults of reg.
func New(reg *vault.Registry, opts ...Option) *Tracker {
	t := &Tracker{registry: reg, threshold: DefaultThreshold, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Threshold returns the staleness threshold in use.
func (t *Tracker) Threshold() time.Duration { return t.threshold }

// CacheAge returns the time since v was last synced. For remote vaults
// that is the cache directory's mtime, for local vaults the source path's.
// Builtin kits are always zero. synced is false when there is nothing on
// disk to measure.
func (t *Tracker) CacheAge(v vault.Vault) (age time.Duration, synced bool) {
	var p string
	switch v.Kind() {
	case vault.KindBuiltin:
		return 0, true
	case vault.KindGit:
		p = t.registry.CachePath(v)
	default:
		p = v.Source
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, false
	}
	return t.now().Sub(info.ModTime()), true
}

// IsStale reports whether v needs a sync. Only remote vaults go stale; one
// never synced is always stale. A non-positive threshold uses the tracker's.
func (t *Tracker) IsStale(v vault.Vault, threshold time.Duration) bool {
	if !v.IsRemote() {
		return false
	}
	if threshold <= 0 {
		threshold = t.threshold
	}
	age, synced := t.CacheAge(v)
	return !synced || age > threshold
}

// Status is the freshness of one vault.
type Status struct {
	Age    time.Duration `json:"age"`
	Synced bool          `json:"synced"`
	Label  string        `json:"label"`
	Stale  bool          `json:"stale"`
}

// Check bundles CacheAge, Describe and IsStale.
func (t *Tracker) Check(v vault.Vault) Status {
	age, synced := t.CacheAge(v)
	s := Status{Age: age, Synced: synced, Label: Never, Stale: t.IsStale(v, 0)}
	if synced {
		s.Label = Describe(age)
	}
	return s
}

// Describe renders d in the coarsest whole unit: "just now", "5m ago",
// "3h ago", "2d ago" or "6w ago". Negative durations are "just now".
func Describe(d time.Duration) string {
	const (
		day  = 24 * time.Hour
		week = 7 * day
	)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < day:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < week:
		return fmt.Sprintf("%dd ago", int(d/day))
	default:
		return fmt.Sprintf("%dw ago", int(d/week))
	}
}
