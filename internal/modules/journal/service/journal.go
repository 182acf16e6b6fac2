package service

import (
	"context"

	position "signal_bot/internal/modules/position/service"
	"signal_bot/pkg/db"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS position_journal (
	id          BIGSERIAL PRIMARY KEY,
	inst_id     TEXT        NOT NULL,
	from_state  TEXT        NOT NULL,
	to_state    TEXT        NOT NULL,
	variant     TEXT        NOT NULL,
	side        TEXT        NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	quantity    DOUBLE PRECISION NOT NULL DEFAULT 0,
	stop_level  DOUBLE PRECISION NOT NULL DEFAULT 0,
	take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_ids   TEXT[]      NOT NULL DEFAULT '{}',
	at          TIMESTAMPTZ NOT NULL
)`

const insertTransition = `
INSERT INTO position_journal
	(inst_id, from_state, to_state, variant, side, entry_price, quantity, stop_level, take_profit, order_ids, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Journal appends every position transition to Postgres. Writes happen off
// the scan path; a full queue drops entries.
type Journal struct {
	tx  db.TxManager
	log *zap.Logger
	ch  chan position.Transition
}

// NewJournal returns a disabled journal when tx is nil.
func NewJournal(tx db.TxManager, log *zap.Logger) *Journal {
	return &Journal{
		tx:  tx,
		log: log.Named("journal"),
		ch:  make(chan position.Transition, 256),
	}
}

func (j *Journal) Enabled() bool { return j.tx != nil }

func (j *Journal) Migrate(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	return j.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx, schema)
		return errors.Wrap(err, "journal migrate")
	})
}

// Observe is registered on the position store.
func (j *Journal) Observe(t position.Transition) {
	if !j.Enabled() {
		return
	}
	select {
	case j.ch <- t:
	default:
		j.log.Warn("journal queue full, transition dropped", zap.String("instrument", t.Position.InstID))
	}
}

// Record writes one transition. Exits are stored with the position they
// closed.
func (j *Journal) Record(ctx context.Context, t position.Transition) error {
	p := t.Position
	if p.Variant == "" {
		p = t.Previous
	}
	orderIDs := p.OpenOrderIDs
	if orderIDs == nil {
		orderIDs = []string{}
	}
	return j.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx, insertTransition,
			p.InstID, string(t.From), string(t.To), string(p.Variant), string(p.Side),
			p.EntryPrice, p.Quantity, p.StopLevel, p.TakeProfitLevel, orderIDs, t.At)
		return errors.Wrap(err, "journal insert")
	})
}

func (j *Journal) Run(ctx context.Context) {
	if !j.Enabled() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-j.ch:
			if err := j.Record(ctx, t); err != nil {
				j.log.Error("journal write failed", zap.String("instrument", t.Position.InstID), zap.Error(err))
			}
		}
	}
}
