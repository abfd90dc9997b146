// Package regmap holds the register definition map: the slug-keyed
// table describing every parameter the device controller exposes.
// Definitions come from a YAML file produced during commissioning and
// are read-only afterwards.
package regmap

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/boilerlink/econetd/internal/econet/value"
)

// Definition describes one register. Min/Max/MaxDelta are
// device-declared plausibility bounds; nil means not declared.
type Definition struct {
	ID       uint16
	Type     value.Type
	Exponent int
	Min      *float64
	Max      *float64
	MaxDelta *float64
}

// HasBounds reports whether the device declared any explicit bounds
// for this register.
func (d Definition) HasBounds() bool {
	return d.Min != nil || d.Max != nil || d.MaxDelta != nil
}

// Map is the slug -> definition lookup. Immutable after Load.
type Map struct {
	defs map[string]Definition
}

// Lookup returns the definition for slug.
func (m *Map) Lookup(slug string) (Definition, bool) {
	d, ok := m.defs[slug]
	return d, ok
}

// Slugs returns all configured slugs, sorted.
func (m *Map) Slugs() []string {
	out := make([]string, 0, len(m.defs))
	for s := range m.defs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of configured registers.
func (m *Map) Len() int { return len(m.defs) }

type fileEntry struct {
	ID       uint16   `yaml:"id"`
	Type     string   `yaml:"type"`
	Exponent int      `yaml:"exponent"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
	MaxDelta *float64 `yaml:"max_delta"`
}

// Load reads and validates a register map file.
func Load(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regmap: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse validates and builds a Map from YAML bytes. A malformed table
// is a hard error: unlike a missing reading at runtime, a broken map
// means the installation itself is wrong.
func Parse(raw []byte) (*Map, error) {
	var entries map[string]fileEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("regmap: parse: %w", err)
	}

	defs := make(map[string]Definition, len(entries))
	byID := make(map[uint16]string, len(entries))
	for slug, e := range entries {
		if slug == "" {
			return nil, fmt.Errorf("regmap: empty slug")
		}
		typ, ok := value.ParseType(e.Type)
		if !ok {
			return nil, fmt.Errorf("regmap: %s: unknown type %q", slug, e.Type)
		}
		if prev, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("regmap: %s and %s share id %d", prev, slug, e.ID)
		}
		byID[e.ID] = slug
		if e.Min != nil && e.Max != nil && *e.Min > *e.Max {
			return nil, fmt.Errorf("regmap: %s: min %v above max %v", slug, *e.Min, *e.Max)
		}
		if e.MaxDelta != nil && *e.MaxDelta < 0 {
			return nil, fmt.Errorf("regmap: %s: negative max_delta", slug)
		}
		defs[slug] = Definition{
			ID:       e.ID,
			Type:     typ,
			Exponent: e.Exponent,
			Min:      e.Min,
			Max:      e.Max,
			MaxDelta: e.MaxDelta,
		}
	}
	return &Map{defs: defs}, nil
}

// FromDefinitions builds a Map directly; used by tests and by callers
// that assemble the table programmatically.
func FromDefinitions(defs map[string]Definition) *Map {
	cp := make(map[string]Definition, len(defs))
	for k, v := range defs {
		cp[k] = v
	}
	return &Map{defs: cp}
}
