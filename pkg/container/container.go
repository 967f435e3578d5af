package container

import (
	"context"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
)

// New creates and registers a dependency container. Container diagnostics go to logger.
func New(id string, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	cfg := ectoinject.DefaultContainerConfig
	cfg.ID = id
	cfg.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{
		Prefix:   "ectoinject",
		LogLevel: loglevel.INFO,
		Enabled:  true,
		LogFunc: func(ctx context.Context, level, msg string) {
			if level == loglevel.WARN {
				logger.WithContext(ctx).Warn(msg)
				return
			}
			logger.WithContext(ctx).Debug(msg)
		},
	}
	return ectoinject.NewDIContainer(cfg)
}

// Instance registers a ready-built value under the type T.
func Instance[T any](c ectocontainer.DIContainer, value T) error {
	return ectoinject.RegisterInstance[T](c, value)
}
