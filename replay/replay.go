// Package replay replays a memory trace against a cache and collects
// hit, miss and eviction statistics.
package replay

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// AccessSource produces accesses one at a time. Next returns io.EOF after
// the last access.
type AccessSource interface {
	Next() (trace.Access, error)
}

// HookPosAccess marks the point after an access has been applied to the
// cache.
var HookPosAccess = &sim.HookPos{Name: "Access"}

// AccessEvent is the hook detail for HookPosAccess. Outcomes holds one
// entry per probe: two for a modify, one otherwise.
type AccessEvent struct {
	Access   trace.Access
	Outcomes []cache.Outcome
}

// IncompleteError is returned when a replay stops before the end of the
// trace. Partial holds the statistics accumulated up to that point.
type IncompleteError struct {
	Partial Statistics
	Err     error
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("replay incomplete after %d accesses: %v",
		e.Partial.Accesses, e.Err)
}

func (e *IncompleteError) Unwrap() error {
	return e.Err
}

// Simulator applies accesses to a cache. It owns the cache for the
// duration of the run.
type Simulator struct {
	*sim.HookableBase

	cache *cache.Cache
	stats Statistics
}

// NewSimulator creates a Simulator over an empty or warmed-up cache.
func NewSimulator(c *cache.Cache) *Simulator {
	return &Simulator{
		HookableBase: sim.NewHookableBase(),
		cache:        c,
	}
}

// Cache returns the simulated cache.
func (s *Simulator) Cache() *cache.Cache {
	return s.cache
}

// Stats returns the statistics accumulated so far.
func (s *Simulator) Stats() Statistics {
	return s.stats
}

// Step applies one access. A load or store probes the cache once. A modify
// is a read followed by a write, so it probes the same address twice.
func (s *Simulator) Step(access trace.Access) ([]cache.Outcome, error) {
	if !access.Kind.Valid() {
		return nil, &trace.MalformedRecordError{
			Line:   access.LineNumber,
			Text:   access.String(),
			Reason: fmt.Sprintf("unknown operation %s", access.Kind),
		}
	}

	outcomes := make([]cache.Outcome, 0, 2)
	outcomes = append(outcomes, s.probe(access.Address))
	if access.Kind == trace.Modify {
		outcomes = append(outcomes, s.probe(access.Address))
	}

	s.stats.Accesses++

	if s.NumHooks() > 0 {
		s.InvokeHook(sim.HookCtx{
			Domain: s,
			Pos:    HookPosAccess,
			Item:   access,
			Detail: AccessEvent{Access: access, Outcomes: outcomes},
		})
	}

	return outcomes, nil
}

func (s *Simulator) probe(address uint64) cache.Outcome {
	outcome := s.cache.Access(address)
	s.stats.Record(outcome)

	return outcome
}

// Run replays every access of src. It returns the final statistics, or an
// *IncompleteError if src fails or yields a malformed access.
func (s *Simulator) Run(src AccessSource) (Statistics, error) {
	for {
		access, err := src.Next()
		if errors.Is(err, io.EOF) {
			return s.stats, nil
		}
		if err != nil {
			return Statistics{}, &IncompleteError{Partial: s.stats, Err: err}
		}

		if _, err := s.Step(access); err != nil {
			return Statistics{}, &IncompleteError{Partial: s.stats, Err: err}
		}
	}
}

// Run replays src against c without hooks.
func Run(c *cache.Cache, src AccessSource) (Statistics, error) {
	return NewSimulator(c).Run(src)
}
