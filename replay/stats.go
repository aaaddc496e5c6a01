package replay

import (
	"fmt"

	"github.com/sarchlab/csim/cache"
)

// Statistics holds the counters of a replay.
type Statistics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64

	// Accesses counts trace records and Probes counts cache probes. A
	// modify is one access and two probes.
	Accesses uint64
	Probes   uint64
}

// Record scores one probe outcome.
func (s *Statistics) Record(o cache.Outcome) {
	s.Probes++

	switch o {
	case cache.Hit:
		s.Hits++
	case cache.MissNoEviction:
		s.Misses++
	case cache.MissWithEviction:
		s.Misses++
		s.Evictions++
	}
}

// MissRate returns misses per probe, or 0 before any probe.
func (s Statistics) MissRate() float64 {
	if s.Probes == 0 {
		return 0
	}

	return float64(s.Misses) / float64(s.Probes)
}

// String formats the summary line of a run.
func (s Statistics) String() string {
	return fmt.Sprintf("hits:%d misses:%d evictions:%d",
		s.Hits, s.Misses, s.Evictions)
}
