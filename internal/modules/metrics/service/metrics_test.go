package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signal_bot/internal/apperr"
	"signal_bot/internal/models"
	position "signal_bot/internal/modules/position/service"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionsTrackOpenPositions(t *testing.T) {
	m := NewMetrics()
	ps := position.NewStore()
	ps.Observe(m.Transition)

	require.NoError(t, ps.Reserve("BTC-USDT-SWAP", models.VariantMA25, models.PosLong))
	_, err := ps.Confirm("BTC-USDT-SWAP", models.Fill{Price: 1, Quantity: 1}, models.Levels{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.open.WithLabelValues("ma25")))

	_, err = ps.BeginExit("BTC-USDT-SWAP")
	require.NoError(t, err)
	require.NoError(t, ps.ConfirmExit("BTC-USDT-SWAP"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.open.WithLabelValues("ma25")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending_exit", "flat")))
}

func TestRecorderCounters(t *testing.T) {
	m := NewMetrics()
	m.Signal(models.Signal{Variant: models.VariantEMANew, Side: models.PosLong})
	m.Exit("ETH-USDT-SWAP", models.ExitStop)
	m.Error(apperr.KindTransient)
	m.Error(apperr.KindTransient)
	m.Cycle("multi", 12, 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.signals.WithLabelValues("ema_new", "long")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exits.WithLabelValues("stop")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.errors.WithLabelValues("transient")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.instruments))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.Error(apperr.KindOrder)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `signal_bot_errors_total{kind="order"} 1`)
}
