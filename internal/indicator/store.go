package indicator

import (
	"sync"

	"signal_bot/internal/models"
)

// Store caches lines per instrument and recomputes only what a bar update
// touched.
type Store struct {
	specs []Spec

	mu    sync.Mutex
	cache map[string]Set
}

func NewStore(specs ...Spec) *Store {
	return &Store{
		specs: dedupe(specs),
		cache: make(map[string]Set),
	}
}

func dedupe(specs []Spec) []Spec {
	seen := make(map[string]struct{}, len(specs))
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.ID()]; ok {
			continue
		}
		seen[s.ID()] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (s *Store) Specs() []Spec { return s.specs }

// Refresh brings the cached lines of instID in line with bars. from is the
// first bar index that changed since the previous call: len(bars)-1 after an
// in-place update of the forming bar, the old length after appends, 0 after a
// reload or trim. The returned lines stay valid until the next Refresh of
// the same instrument.
func (s *Store) Refresh(instID string, bars []models.Bar, from int) Set {
	s.mu.Lock()
	prev, ok := s.cache[instID]
	s.mu.Unlock()

	if !ok {
		from = 0
	}
	cs := closes(bars)
	next := make(Set, len(s.specs))
	for _, spec := range s.specs {
		l := prev[spec.ID()]
		if from > l.Len() {
			from = 0
		}
		next[spec.ID()] = extend(l, spec, cs, from)
	}

	s.mu.Lock()
	s.cache[instID] = next
	s.mu.Unlock()
	return next
}

func (s *Store) Drop(instID string) {
	s.mu.Lock()
	delete(s.cache, instID)
	s.mu.Unlock()
}
