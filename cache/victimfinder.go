package cache

// A VictimFinder decides which line of a set is replaced on a miss.
type VictimFinder interface {
	// FindVictim returns the way index of the line to replace. A set that
	// still has an invalid line should give up that line first.
	FindVictim(set []Line) int
}

// LRUVictimFinder evicts the least recently used line of a set.
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns the line with the smallest recency. Ties go to the
// lowest way. Lines that were never filled have recency 0, so they are
// chosen before any valid line.
func (f *LRUVictimFinder) FindVictim(set []Line) int {
	victim := 0
	for way := 1; way < len(set); way++ {
		if set[way].Recency < set[victim].Recency {
			victim = way
		}
	}

	return victim
}
