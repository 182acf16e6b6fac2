package service

import (
	"sort"
	"sync"
	"time"

	"signal_bot/internal/models"

	"github.com/pkg/errors"
)

// ErrBusy is returned for a transition the current state does not allow.
var ErrBusy = errors.New("position busy")

type Transition struct {
	From     models.PositionState
	To       models.PositionState
	Position models.Position
	// Previous is the position before the move; on exits it still holds the
	// side, variant and entry that Position has lost.
	Previous models.Position
	At       time.Time
}

type Observer func(Transition)

// Store owns the per-instrument lifecycle
//
//	flat -> pending_entry -> open -> pending_exit -> flat
//
// with pending_entry -> flat on a failed entry and pending_exit -> open on a
// failed close. Every check-and-set happens under one lock.
type Store struct {
	mu        sync.Mutex
	positions map[string]models.Position
	observers []Observer
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		positions: make(map[string]models.Position),
		now:       time.Now,
	}
}

// Observe registers fn for every transition. Observers run outside the lock,
// in registration order.
func (s *Store) Observe(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) Get(instID string) models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(instID)
}

func (s *Store) get(instID string) models.Position {
	p, ok := s.positions[instID]
	if !ok {
		return models.Position{InstID: instID, Side: models.PosFlat, State: models.StateFlat}
	}
	p.OpenOrderIDs = append([]string(nil), p.OpenOrderIDs...)
	return p
}

// Active lists instruments that are not flat, sorted by id.
func (s *Store) Active() []models.Position {
	s.mu.Lock()
	out := make([]models.Position, 0, len(s.positions))
	for id := range s.positions {
		out = append(out, s.get(id))
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].InstID < out[j].InstID })
	return out
}

func (s *Store) move(instID string, from models.PositionState, fn func(p *models.Position)) (models.Position, error) {
	s.mu.Lock()
	p := s.get(instID)
	if p.State != from {
		s.mu.Unlock()
		return p, errors.Wrapf(ErrBusy, "%s is %s, want %s", instID, p.State, from)
	}
	prev := p
	fn(&p)
	p.Updated = s.now()
	if p.State == models.StateFlat {
		delete(s.positions, instID)
	} else {
		s.positions[instID] = p
	}
	obs := s.observers
	s.mu.Unlock()

	tr := Transition{From: from, To: p.State, Position: p, Previous: prev, At: p.Updated}
	for _, fn := range obs {
		fn(tr)
	}
	return p, nil
}

// Reserve claims a flat instrument for one entry attempt.
func (s *Store) Reserve(instID string, v models.Variant, side models.PosSide) error {
	_, err := s.move(instID, models.StateFlat, func(p *models.Position) {
		p.State = models.StatePendingEntry
		p.Variant = v
		p.Side = side
	})
	return err
}

// Confirm records the fill and levels together with the move to open.
func (s *Store) Confirm(instID string, fill models.Fill, lv models.Levels) (models.Position, error) {
	return s.move(instID, models.StatePendingEntry, func(p *models.Position) {
		p.State = models.StateOpen
		p.EntryPrice = fill.Price
		p.Quantity = fill.Quantity
		p.StopLevel = lv.Stop
		p.TakeProfitLevel = lv.TakeProfit
		p.OpenOrderIDs = append([]string(nil), fill.OrderIDs...)
	})
}

// Abort returns a failed entry to flat.
func (s *Store) Abort(instID string) error {
	_, err := s.move(instID, models.StatePendingEntry, reset)
	return err
}

func (s *Store) BeginExit(instID string) (models.Position, error) {
	return s.move(instID, models.StateOpen, func(p *models.Position) {
		p.State = models.StatePendingExit
	})
}

func (s *Store) ConfirmExit(instID string) error {
	_, err := s.move(instID, models.StatePendingExit, reset)
	return err
}

// CancelExit keeps the position open after a failed close.
func (s *Store) CancelExit(instID string) error {
	_, err := s.move(instID, models.StatePendingExit, func(p *models.Position) {
		p.State = models.StateOpen
	})
	return err
}

func reset(p *models.Position) {
	*p = models.Position{InstID: p.InstID, Side: models.PosFlat, State: models.StateFlat}
}
