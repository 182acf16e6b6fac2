package control

import (
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/control/service"

	"go.uber.org/fx"
)

// NewStore picks the control signal store named by control.source.
func NewStore(cfg *config.Config) (service.Store, error) {
	if cfg.Control.Source == config.ControlMemory {
		return service.NewMemorySource(models.ControlStart), nil
	}
	return service.NewFileSource(cfg.Control.File)
}

func Module() fx.Option {
	return fx.Module("control",
		fx.Provide(
			NewStore,
			func(s service.Store) service.Source { return s },
			service.NewGate,
		),
	)
}
