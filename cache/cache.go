// Package cache models a set-associative cache with true-LRU replacement.
package cache

import "fmt"

// Outcome is the result of probing a set for a tag.
type Outcome int

const (
	// Hit means a valid line already held the tag.
	Hit Outcome = iota
	// MissNoEviction means the tag was installed into a line that was
	// never filled.
	MissNoEviction
	// MissWithEviction means the tag replaced a valid line.
	MissWithEviction
)

// String returns the outcome as printed in verbose traces.
func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case MissNoEviction:
		return "miss"
	case MissWithEviction:
		return "miss eviction"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// IsHit reports whether the outcome is a hit.
func (o Outcome) IsHit() bool {
	return o == Hit
}

// Evicted reports whether the outcome replaced a valid line.
func (o Outcome) Evicted() bool {
	return o == MissWithEviction
}

// Line is one cache line. Block contents are not modeled.
type Line struct {
	Valid bool
	Tag   uint64
	// Recency is the clock value of the last probe that touched the line.
	Recency uint64
}

// Cache is a set-associative cache. A Cache is owned by a single
// simulation run and is not safe for concurrent use.
type Cache struct {
	geometry Geometry
	ways     int

	// Lines of all sets, indexed by setIndex*ways + way.
	lines []Line

	// clock advances once per probe and timestamps line accesses.
	clock uint64

	victimFinder VictimFinder
}

// Option configures a Cache.
type Option func(*Cache)

// WithVictimFinder replaces the default LRU victim finder.
func WithVictimFinder(f VictimFinder) Option {
	return func(c *Cache) {
		c.victimFinder = f
	}
}

// New creates an empty cache with the given geometry.
func New(g Geometry, opts ...Option) (*Cache, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		geometry:     g,
		ways:         g.Associativity,
		lines:        make([]Line, g.NumSets()*uint64(g.Associativity)),
		victimFinder: NewLRUVictimFinder(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Geometry returns the cache geometry.
func (c *Cache) Geometry() Geometry {
	return c.geometry
}

// Clock returns the number of probes performed so far.
func (c *Cache) Clock() uint64 {
	return c.clock
}

func (c *Cache) set(setIndex uint64) []Line {
	start := setIndex * uint64(c.ways)
	return c.lines[start : start+uint64(c.ways)]
}

// Access decodes the address and probes the set it maps to.
func (c *Cache) Access(address uint64) Outcome {
	setIndex, tag := Decode(address, c.geometry)
	return c.Probe(setIndex, tag)
}

// Probe looks up the tag in the given set. On a hit the line's recency is
// refreshed. On a miss the victim chosen by the replacement policy is
// overwritten with the tag.
func (c *Cache) Probe(setIndex, tag uint64) Outcome {
	set := c.set(setIndex)

	c.clock++

	for way := range set {
		line := &set[way]
		if line.Valid && line.Tag == tag {
			line.Recency = c.clock
			return Hit
		}
	}

	victim := &set[c.victimFinder.FindVictim(set)]

	outcome := MissNoEviction
	if victim.Valid {
		outcome = MissWithEviction
	}

	victim.Valid = true
	victim.Tag = tag
	victim.Recency = c.clock

	return outcome
}

// Line returns a copy of one line.
func (c *Cache) Line(setIndex uint64, way int) Line {
	return c.set(setIndex)[way]
}

// SetTags returns the tags of the valid lines of a set in way order.
func (c *Cache) SetTags(setIndex uint64) []uint64 {
	tags := make([]uint64, 0, c.ways)
	for _, line := range c.set(setIndex) {
		if line.Valid {
			tags = append(tags, line.Tag)
		}
	}

	return tags
}

// ValidLines returns the number of valid lines in a set.
func (c *Cache) ValidLines(setIndex uint64) int {
	n := 0
	for _, line := range c.set(setIndex) {
		if line.Valid {
			n++
		}
	}

	return n
}

// Reset invalidates every line and rewinds the clock.
func (c *Cache) Reset() {
	clear(c.lines)
	c.clock = 0
}
