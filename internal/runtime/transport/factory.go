// Package transport connects the runtime to the pluggable transports under
// github.com/drblury/unitcast/transport.
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/unitcast/internal/runtime/config"
	registry "github.com/drblury/unitcast/transport"

	_ "github.com/drblury/unitcast/transport/transports"
)

// Transport is a publisher and subscriber pair.
type Transport = registry.Transport

// Capabilities is an alias for the transport Capabilities.
type Capabilities = registry.Capabilities

// ConfigError marks a build failure that retrying will not fix.
type ConfigError = registry.ConfigError

// Factory abstracts how a network builds its transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the default transport registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, registry.NewConfigError("unknown", errors.New("config is required"))
	}
	return registry.Build(ctx, conf, logger)
}

// IsConfigError reports whether err is a misconfiguration rather than a
// transient failure.
func IsConfigError(err error) bool {
	return registry.IsConfigError(err)
}

// GetCapabilities returns the capabilities registered for a transport name.
func GetCapabilities(name string) Capabilities {
	return registry.GetCapabilities(name)
}

// Registered lists the transports linked into the binary.
func Registered() []string {
	return registry.DefaultRegistry.Names()
}
