package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/control/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Control.Source = config.ControlMemory

	st, err := NewStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &service.MemorySource{}, st)

	ctx := context.Background()
	sig, err := st.CurrentSignal(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ControlStart, sig)

	require.NoError(t, st.SetSignal(ctx, models.ControlStop))
	sig, _ = st.CurrentSignal(ctx)
	assert.Equal(t, models.ControlStop, sig)
}

func TestNewStoreFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Control.Source = config.ControlFile
	cfg.Control.File = filepath.Join(t.TempDir(), "control_signal.txt")

	st, err := NewStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &service.FileSource{}, st)

	b, err := os.ReadFile(cfg.Control.File)
	require.NoError(t, err)
	assert.Equal(t, "start", string(b))
}
