package service

import (
	"sync"
	"sync/atomic"
	"testing"

	"signal_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

const btc = "BTC-USDT-SWAP"

type StoreTestSuite struct {
	suite.Suite

	store *Store
	seen  []Transition
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.store = NewStore()
	s.seen = nil
	s.store.Observe(func(tr Transition) { s.seen = append(s.seen, tr) })
}

func (s *StoreTestSuite) TestFullLifecycle() {
	s.Require().NoError(s.store.Reserve(btc, models.VariantMA25, models.PosLong))
	s.Equal(models.StatePendingEntry, s.store.Get(btc).State)

	p, err := s.store.Confirm(btc, models.Fill{OrderIDs: []string{"1", "2"}, Price: 30000, Quantity: 0.1},
		models.Levels{Stop: 29000, TakeProfit: 32000})
	s.Require().NoError(err)
	s.Equal(models.StateOpen, p.State)
	s.Equal(models.PosLong, p.Side)
	s.Equal(29000.0, p.StopLevel)
	s.Equal([]string{"1", "2"}, p.OpenOrderIDs)

	_, err = s.store.BeginExit(btc)
	s.Require().NoError(err)
	s.Require().NoError(s.store.ConfirmExit(btc))

	flat := s.store.Get(btc)
	s.Equal(models.StateFlat, flat.State)
	s.Equal(models.PosFlat, flat.Side)
	s.Zero(flat.StopLevel)
	s.Zero(flat.TakeProfitLevel)
	s.Empty(s.store.Active())

	s.Require().Len(s.seen, 4)
	s.Equal(models.StatePendingExit, s.seen[3].From)
	s.Equal(models.StateFlat, s.seen[3].To)
	s.Equal(30000.0, s.seen[3].Previous.EntryPrice)
	s.Equal(models.VariantMA25, s.seen[3].Previous.Variant)
}

func (s *StoreTestSuite) TestNoOpenToOpenWithoutFlat() {
	s.Require().NoError(s.store.Reserve(btc, models.VariantMA25, models.PosLong))
	_, err := s.store.Confirm(btc, models.Fill{Price: 1, Quantity: 1}, models.Levels{})
	s.Require().NoError(err)

	err = s.store.Reserve(btc, models.VariantMA25, models.PosShort)
	s.True(errors.Is(err, ErrBusy))
	_, err = s.store.Confirm(btc, models.Fill{Price: 2, Quantity: 1}, models.Levels{})
	s.True(errors.Is(err, ErrBusy))

	for _, tr := range s.seen {
		s.False(tr.From == models.StateOpen && tr.To == models.StateOpen)
	}
	s.Equal(1.0, s.store.Get(btc).EntryPrice)
}

func (s *StoreTestSuite) TestAbortAndCancelExit() {
	s.Require().NoError(s.store.Reserve(btc, models.VariantEMANew, models.PosLong))
	s.Require().NoError(s.store.Abort(btc))
	s.True(s.store.Get(btc).IsFlat())
	s.Equal(models.Variant(""), s.store.Get(btc).Variant)

	s.Require().NoError(s.store.Reserve(btc, models.VariantEMANew, models.PosLong))
	_, err := s.store.Confirm(btc, models.Fill{Price: 10, Quantity: 1}, models.Levels{Stop: 9.5})
	s.Require().NoError(err)
	_, err = s.store.BeginExit(btc)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CancelExit(btc))

	p := s.store.Get(btc)
	s.Equal(models.StateOpen, p.State)
	s.Equal(9.5, p.StopLevel)
	s.True(errors.Is(s.store.Abort(btc), ErrBusy))
}

func (s *StoreTestSuite) TestConcurrentReserveHasOneWinner() {
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.store.Reserve("ETH-USDT-SWAP", models.VariantMA25, models.PosLong) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *StoreTestSuite) TestActiveIsSorted() {
	s.Require().NoError(s.store.Reserve("SOL-USDT-SWAP", models.VariantMA25, models.PosLong))
	s.Require().NoError(s.store.Reserve("ADA-USDT-SWAP", models.VariantMA25, models.PosShort))
	act := s.store.Active()
	s.Require().Len(act, 2)
	s.Equal("ADA-USDT-SWAP", act[0].InstID)
}
