// Package poll implements the polling coordinator: a TTL cache over
// the device client with validation, hold-last-known fallback,
// write-then-verify, and one-time register discovery.
package poll

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boilerlink/econetd/internal/econet/value"
	"github.com/boilerlink/econetd/internal/observability"
	"github.com/boilerlink/econetd/internal/regmap"
)

// Device is the client surface the coordinator needs. The coordinator
// depends on read/write semantics only.
type Device interface {
	GetValue(ctx context.Context, slug string, retries int) value.Value
	SetValue(ctx context.Context, slug string, v value.Value) bool
}

// Config tunes cache and retry pacing. Zero values pick the defaults.
type Config struct {
	TTL              time.Duration
	ReadRetries      int
	DiscoveryRetries int
	VerifyAttempts   int
	VerifySettle     time.Duration
	VerifyBackoff    time.Duration
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 25 * time.Second
	}
	if c.ReadRetries <= 0 {
		c.ReadRetries = 5
	}
	if c.DiscoveryRetries <= 0 {
		c.DiscoveryRetries = 2
	}
	if c.VerifyAttempts <= 0 {
		c.VerifyAttempts = 5
	}
	if c.VerifySettle <= 0 {
		c.VerifySettle = 500 * time.Millisecond
	}
	if c.VerifyBackoff <= 0 {
		c.VerifyBackoff = time.Second
	}
}

type entry struct {
	val value.Value
	at  time.Time
}

// Coordinator owns the cache and the active register set for exactly
// one device.
type Coordinator struct {
	cfg      Config
	dev      Device
	regs     *regmap.Map
	universe []string
	log      zerolog.Logger

	// now is a clock seam for cache-age tests.
	now func() time.Time

	mu         sync.Mutex
	cache      map[string]entry
	active     []string
	discovered bool
}

// New builds a coordinator polling the default universe.
func New(cfg Config, dev Device, regs *regmap.Map, log zerolog.Logger) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		cfg:      cfg,
		dev:      dev,
		regs:     regs,
		universe: Universe(),
		log:      log,
		now:      time.Now,
		cache:    make(map[string]entry),
	}
}

// PollCycle refreshes every active register and returns this cycle's
// snapshot. Fresh cache entries are served without device I/O; stale
// ones are refetched and validated. An invalid reading never enters
// the cache: the previous value is re-emitted with its old timestamp
// so the slug is retried next cycle, and a slug with no history is
// simply omitted.
func (c *Coordinator) PollCycle(ctx context.Context) map[string]value.Value {
	c.ensureDiscovered(ctx)

	out := make(map[string]value.Value)
	for _, slug := range c.activeSlugs() {
		if ctx.Err() != nil {
			break
		}

		c.mu.Lock()
		cached, haveCached := c.cache[slug]
		fresh := haveCached && c.now().Sub(cached.at) < c.cfg.TTL
		c.mu.Unlock()

		if fresh {
			observability.RecordCacheHit(slug)
			out[slug] = cached.val
			continue
		}

		// Device I/O and validation happen outside the cache lock.
		raw := c.dev.GetValue(ctx, slug, c.cfg.ReadRetries)
		ok, reason := validate(c.def(slug), slug, raw, cached.val)
		if ok {
			c.mu.Lock()
			c.cache[slug] = entry{val: raw, at: c.now()}
			c.mu.Unlock()
			out[slug] = raw
			continue
		}

		observability.RecordRejection(slug, reason)
		if haveCached {
			c.log.Debug().Str("slug", slug).Str("reason", reason).
				Stringer("held", cached.val).Msg("holding last known value")
			out[slug] = cached.val
		}
	}

	observability.RecordPollCycle()
	return out
}

// Snapshot returns the current cache contents without touching the
// device. Different slugs may carry values fetched at different times
// within a cycle; there is no cross-slug atomicity.
func (c *Coordinator) Snapshot() map[string]value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]value.Value, len(c.cache))
	for slug, e := range c.cache {
		out[slug] = e.val
	}
	return out
}

// SetValue writes a register and confirms the device applied it by
// reading it back. The cache is only updated after a verified match;
// exhausting every attempt leaves it untouched.
func (c *Coordinator) SetValue(ctx context.Context, slug string, v value.Value) bool {
	for attempt := 1; attempt <= c.cfg.VerifyAttempts; attempt++ {
		if c.writeAndVerify(ctx, slug, v, attempt) {
			return true
		}
		if attempt < c.cfg.VerifyAttempts {
			if !sleepCtx(ctx, time.Duration(attempt)*c.cfg.VerifyBackoff) {
				return false
			}
		}
	}
	c.log.Error().Str("slug", slug).Stringer("value", v).
		Int("attempts", c.cfg.VerifyAttempts).Msg("write-verify exhausted")
	return false
}

func (c *Coordinator) writeAndVerify(ctx context.Context, slug string, v value.Value, attempt int) bool {
	if !c.dev.SetValue(ctx, slug, v) {
		c.log.Warn().Str("slug", slug).Int("attempt", attempt).Msg("device write failed")
		return false
	}

	// Give the controller a moment to apply the change.
	if !sleepCtx(ctx, c.cfg.VerifySettle) {
		return false
	}

	got := c.dev.GetValue(ctx, slug, 1)
	if got.IsAbsent() {
		c.log.Warn().Str("slug", slug).Int("attempt", attempt).Msg("verification read failed")
		return false
	}
	if !got.Equal(v) {
		c.log.Warn().Str("slug", slug).Int("attempt", attempt).
			Stringer("wrote", v).Stringer("read", got).Msg("write verification mismatch")
		return false
	}

	c.mu.Lock()
	c.cache[slug] = entry{val: v, at: c.now()}
	c.mu.Unlock()
	c.log.Info().Str("slug", slug).Stringer("value", v).Int("attempt", attempt).
		Msg("value set and verified")
	return true
}

// Discover probes the slug universe once and records which registers
// this device actually answers for. Candidates missing from the
// register map are skipped; a probe counts only if it yields a value
// that is neither absent nor the disconnected-sensor sentinel.
func (c *Coordinator) Discover(ctx context.Context) []string {
	seen := make(map[string]bool)
	var active []string
	for _, slug := range c.universe {
		if seen[slug] {
			continue
		}
		seen[slug] = true

		if _, ok := c.regs.Lookup(slug); !ok {
			continue
		}
		v := c.dev.GetValue(ctx, slug, c.cfg.DiscoveryRetries)
		if v.IsAbsent() {
			continue
		}
		if f, numeric := v.AsFloat(); numeric && f == sentinelReading {
			continue
		}
		active = append(active, slug)
	}
	sort.Strings(active)

	c.mu.Lock()
	c.active = active
	c.discovered = true
	c.mu.Unlock()

	c.log.Info().Int("active", len(active)).Int("universe", len(seen)).
		Msg("register discovery complete")
	return active
}

// ResetDiscovery forgets the active set; the next poll cycle probes
// the device again.
func (c *Coordinator) ResetDiscovery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discovered = false
	c.active = nil
}

// Active returns the discovered register set.
func (c *Coordinator) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.active...)
}

func (c *Coordinator) ensureDiscovered(ctx context.Context) {
	c.mu.Lock()
	done := c.discovered
	c.mu.Unlock()
	if !done {
		c.Discover(ctx)
	}
}

func (c *Coordinator) activeSlugs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.active...)
}

func (c *Coordinator) def(slug string) regmap.Definition {
	d, _ := c.regs.Lookup(slug)
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
