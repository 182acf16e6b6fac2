package config

import "go.uber.org/fx"

// Module provides *Config built from the supplied Options.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
	)
}
