package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/cache"
)

type mruVictimFinder struct{}

// FindVictim fills invalid lines first, then replaces the most recently
// used line.
func (mruVictimFinder) FindVictim(set []cache.Line) int {
	victim := 0
	for way := range set {
		if !set[way].Valid {
			return way
		}
		if set[way].Recency > set[victim].Recency {
			victim = way
		}
	}
	return victim
}

var _ = Describe("Cache", func() {
	var c *cache.Cache

	newCache := func(s, e, b int) *cache.Cache {
		c, err := cache.New(cache.Geometry{
			SetIndexBits:    s,
			Associativity:   e,
			BlockOffsetBits: b,
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Describe("Probe", func() {
		BeforeEach(func() {
			// 4 sets, 4 ways, 16B blocks
			c = newCache(2, 4, 4)
		})

		It("should start with every line invalid", func() {
			for set := uint64(0); set < 4; set++ {
				Expect(c.ValidLines(set)).To(Equal(0))
				for way := 0; way < 4; way++ {
					Expect(c.Line(set, way)).To(Equal(cache.Line{}))
				}
			}
		})

		It("should miss on a cold cache", func() {
			Expect(c.Probe(1, 7)).To(Equal(cache.MissNoEviction))
			Expect(c.SetTags(1)).To(Equal([]uint64{7}))
		})

		It("should hit on a cached tag", func() {
			c.Probe(1, 7)
			Expect(c.Probe(1, 7)).To(Equal(cache.Hit))
		})

		It("should keep hitting without changing the set", func() {
			c.Probe(1, 7)
			c.Probe(1, 8)
			before := c.SetTags(1)

			Expect(c.Probe(1, 8)).To(Equal(cache.Hit))
			Expect(c.Probe(1, 8)).To(Equal(cache.Hit))
			Expect(c.SetTags(1)).To(Equal(before))
		})

		It("should not let one set disturb another", func() {
			c.Probe(0, 7)
			Expect(c.Probe(1, 7)).To(Equal(cache.MissNoEviction))
			Expect(c.ValidLines(0)).To(Equal(1))
			Expect(c.ValidLines(1)).To(Equal(1))
		})

		It("should fill invalid lines in way order", func() {
			for tag := uint64(0); tag < 4; tag++ {
				Expect(c.Probe(2, tag)).To(Equal(cache.MissNoEviction))
				Expect(c.Line(2, int(tag)).Tag).To(Equal(tag))
			}
		})

		It("should advance the clock on every lookup", func() {
			c.Probe(0, 1)
			c.Probe(0, 1)
			c.Probe(3, 9)
			Expect(c.Clock()).To(Equal(uint64(3)))
			Expect(c.Line(0, 0).Recency).To(Equal(uint64(2)))
			Expect(c.Line(3, 0).Recency).To(Equal(uint64(3)))
		})
	})

	Describe("Capacity", func() {
		BeforeEach(func() {
			c = newCache(0, 4, 0)
		})

		It("should never hold more than E valid lines", func() {
			for tag := uint64(0); tag < 20; tag++ {
				c.Probe(0, tag)
				Expect(c.ValidLines(0)).To(BeNumerically("<=", 4))
			}
			Expect(c.ValidLines(0)).To(Equal(4))
		})

		It("should evict exactly once for the (E+1)-th tag", func() {
			for tag := uint64(0); tag < 4; tag++ {
				Expect(c.Probe(0, tag)).To(Equal(cache.MissNoEviction))
			}

			Expect(c.Probe(0, 4)).To(Equal(cache.MissWithEviction))
			Expect(c.ValidLines(0)).To(Equal(4))
		})
	})

	Describe("LRU", func() {
		BeforeEach(func() {
			c = newCache(0, 4, 0)
			for tag := uint64(0); tag < 4; tag++ {
				c.Probe(0, tag)
			}
		})

		It("should evict the oldest line", func() {
			Expect(c.Probe(0, 4)).To(Equal(cache.MissWithEviction))
			Expect(c.SetTags(0)).To(ConsistOf(uint64(4), uint64(1), uint64(2), uint64(3)))
		})

		It("should spare a line refreshed by a hit", func() {
			Expect(c.Probe(0, 0)).To(Equal(cache.Hit))
			Expect(c.Probe(0, 4)).To(Equal(cache.MissWithEviction))

			Expect(c.SetTags(0)).To(ConsistOf(uint64(0), uint64(4), uint64(2), uint64(3)))
			Expect(c.Probe(0, 0)).To(Equal(cache.Hit))
			Expect(c.Probe(0, 1)).To(Equal(cache.MissWithEviction))
		})

		It("should follow the recency order of hits", func() {
			c.Probe(0, 2)
			c.Probe(0, 0)
			c.Probe(0, 3)
			c.Probe(0, 1)

			// Oldest first: 2, 0, 3, 1
			Expect(c.Probe(0, 10)).To(Equal(cache.MissWithEviction))
			Expect(c.SetTags(0)).NotTo(ContainElement(uint64(2)))
			Expect(c.Probe(0, 11)).To(Equal(cache.MissWithEviction))
			Expect(c.SetTags(0)).NotTo(ContainElement(uint64(0)))
		})
	})

	Describe("Access", func() {
		It("should thrash a direct-mapped set", func() {
			c = newCache(1, 1, 0)

			Expect(c.Access(0x0)).To(Equal(cache.MissNoEviction))
			Expect(c.Access(0x2)).To(Equal(cache.MissWithEviction))
			Expect(c.Access(0x0)).To(Equal(cache.MissWithEviction))
		})

		It("should keep two alternating tags in a 2-way set", func() {
			c = newCache(0, 2, 0)

			Expect(c.Access(0)).To(Equal(cache.MissNoEviction))
			Expect(c.Access(1)).To(Equal(cache.MissNoEviction))
			Expect(c.Access(0)).To(Equal(cache.Hit))
			Expect(c.Access(1)).To(Equal(cache.Hit))
		})

		It("should hit on another byte of the same block", func() {
			c = newCache(4, 1, 6)

			c.Access(0x1000)
			Expect(c.Access(0x103f)).To(Equal(cache.Hit))
			Expect(c.Access(0x1040)).To(Equal(cache.MissNoEviction))
		})
	})

	Describe("Reset", func() {
		It("should invalidate every line", func() {
			c = newCache(1, 2, 0)
			c.Access(0)
			c.Access(1)

			c.Reset()

			Expect(c.Clock()).To(Equal(uint64(0)))
			Expect(c.ValidLines(0)).To(Equal(0))
			Expect(c.ValidLines(1)).To(Equal(0))
			Expect(c.Access(0)).To(Equal(cache.MissNoEviction))
		})
	})

	Describe("Victim finder", func() {
		It("should use the configured policy", func() {
			var err error
			c, err = cache.New(
				cache.Geometry{SetIndexBits: 0, Associativity: 2, BlockOffsetBits: 0},
				cache.WithVictimFinder(mruVictimFinder{}),
			)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Probe(0, 1)).To(Equal(cache.MissNoEviction))
			Expect(c.Probe(0, 2)).To(Equal(cache.MissNoEviction))
			Expect(c.Probe(0, 3)).To(Equal(cache.MissWithEviction))
			Expect(c.SetTags(0)).To(ConsistOf(uint64(1), uint64(3)))
			Expect(c.Probe(0, 1)).To(Equal(cache.Hit))
		})
	})

	Describe("Outcome", func() {
		It("should print like the verbose trace", func() {
			Expect(cache.Hit.String()).To(Equal("hit"))
			Expect(cache.MissNoEviction.String()).To(Equal("miss"))
			Expect(cache.MissWithEviction.String()).To(Equal("miss eviction"))
			Expect(cache.Hit.IsHit()).To(BeTrue())
			Expect(cache.MissWithEviction.Evicted()).To(BeTrue())
			Expect(cache.MissNoEviction.Evicted()).To(BeFalse())
		})
	})
})

var _ = Describe("LRUVictimFinder", func() {
	It("should pick the lowest way on ties", func() {
		f := cache.NewLRUVictimFinder()
		Expect(f.FindVictim(make([]cache.Line, 4))).To(Equal(0))
	})

	It("should pick the smallest recency", func() {
		f := cache.NewLRUVictimFinder()
		set := []cache.Line{
			{Valid: true, Tag: 1, Recency: 5},
			{Valid: true, Tag: 2, Recency: 3},
			{Valid: true, Tag: 3, Recency: 9},
		}
		Expect(f.FindVictim(set)).To(Equal(1))
	})
})
