package service

import (
	"context"
	"testing"
	"time"

	"signal_bot/internal/models"
	position "signal_bot/internal/modules/position/service"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	calls []execCall
	err   error
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, f.err
}

func (f *fakeTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) { return nil, nil }
func (f *fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row        { return nil }

type fakeManager struct {
	tx *fakeTx
}

func (m *fakeManager) RunMaster(ctx context.Context, fn func(context.Context, db.Transaction) error) error {
	return fn(ctx, m.tx)
}

func TestRecordExitUsesClosedPosition(t *testing.T) {
	tx := &fakeTx{}
	j := NewJournal(&fakeManager{tx: tx}, zap.NewNop())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err := j.Record(context.Background(), position.Transition{
		From:     models.StatePendingExit,
		To:       models.StateFlat,
		Position: models.Position{InstID: "BTC-USDT-SWAP", State: models.StateFlat},
		Previous: models.Position{InstID: "BTC-USDT-SWAP", Variant: models.VariantMA60, Side: models.PosShort, EntryPrice: 30000, Quantity: 2},
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, tx.calls, 1)

	args := tx.calls[0].args
	assert.Equal(t, "BTC-USDT-SWAP", args[0])
	assert.Equal(t, "pending_exit", args[1])
	assert.Equal(t, "flat", args[2])
	assert.Equal(t, "ma60", args[3])
	assert.Equal(t, "short", args[4])
	assert.Equal(t, 30000.0, args[5])
	assert.Equal(t, []string{}, args[9])
	assert.Equal(t, at, args[10])
}

func TestRecordError(t *testing.T) {
	j := NewJournal(&fakeManager{tx: &fakeTx{err: errors.New("conn reset")}}, zap.NewNop())
	err := j.Record(context.Background(), position.Transition{Position: models.Position{Variant: models.VariantMA25}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn reset")
}

func TestDisabledJournal(t *testing.T) {
	j := NewJournal(nil, zap.NewNop())
	assert.False(t, j.Enabled())
	assert.NoError(t, j.Migrate(context.Background()))
	j.Observe(position.Transition{})
	assert.Len(t, j.ch, 0)
}

func TestRunDrainsObservedTransitions(t *testing.T) {
	tx := &fakeTx{}
	j := NewJournal(&fakeManager{tx: tx}, zap.NewNop())
	ps := position.NewStore()
	ps.Observe(j.Observe)

	require.NoError(t, ps.Reserve("ETH-USDT-SWAP", models.VariantEMANew, models.PosLong))
	require.NoError(t, ps.Abort("ETH-USDT-SWAP"))
	require.Len(t, j.ch, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(j.ch) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Len(t, tx.calls, 2)
	assert.Equal(t, "pending_entry", tx.calls[0].args[2])
	assert.Equal(t, "flat", tx.calls[1].args[2])
}
