package service

import (
	"context"

	"go.uber.org/zap"
)

// ScanSet is the refreshed universe plus every instrument that still holds a
// position. Instruments leaving the set have their cached bars released.
func (s *Scanner) ScanSet(ctx context.Context) ([]string, error) {
	universe, err := s.refreshUniverse(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(universe))
	out := make([]string, 0, len(universe))
	for _, id := range universe {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, p := range s.pos.Active() {
		if !seen[p.InstID] {
			seen[p.InstID] = true
			out = append(out, p.InstID)
		}
	}

	s.mu.Lock()
	for id := range s.scanning {
		if !seen[id] {
			s.bars.Drop(id)
			s.lines.Drop(id)
		}
	}
	s.scanning = seen
	s.mu.Unlock()
	return out, nil
}

func (s *Scanner) refreshUniverse(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	cached, at := s.universe, s.universeAt
	s.mu.Unlock()

	if len(cached) > 0 && s.now().Sub(at) < s.cfg.UniverseRefresh {
		return cached, nil
	}

	fresh := s.cfg.Symbols
	if len(fresh) == 0 {
		var err error
		fresh, err = s.venue.Universe(ctx)
		if err != nil {
			if len(cached) > 0 {
				s.log.Warn("universe refresh failed, keeping previous", zap.Error(err))
				return cached, nil
			}
			return nil, err
		}
	}

	s.mu.Lock()
	s.universe, s.universeAt = fresh, s.now()
	s.mu.Unlock()
	s.log.Info("universe refreshed", zap.Int("instruments", len(fresh)))
	return fresh, nil
}
