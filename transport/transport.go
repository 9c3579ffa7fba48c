// Package transport defines the publish/subscribe boundary of unitcast. Each
// backend (redis, nats, kafka, rabbitmq, aws, channel) lives in its own
// sub-package and registers a Builder with the default registry.
//
// A transport must deliver every message published on a channel to every
// unit subscribed to that channel. Backends with queue semantics derive a
// per-unit subscription from Config.GetUnit so units never compete for a
// message.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close releases the publisher and the subscriber.
func (t Transport) Close() error {
	var errs []error
	if t.Subscriber != nil {
		errs = append(errs, t.Subscriber.Close())
	}
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	return errors.Join(errs...)
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the values transports read. It keeps transport packages
// independent of the runtime config package.
type Config interface {
	// GetNetwork returns the channel name shared by all units.
	GetNetwork() string
	// GetUnit returns the identity of the local process.
	GetUnit() string
	GetPubSubSystem() string

	// GetTransportURI returns the connection string for URI based backends
	// (redis, nats, rabbitmq).
	GetTransportURI() string
	GetTransportTimeout() time.Duration

	// Kafka
	GetKafkaBrokers() []string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// ErrUnknownTransport is wrapped by the error returned for an unregistered
// pubsub system.
var ErrUnknownTransport = errors.New("unknown transport")

// ConfigError marks a build failure caused by configuration rather than by
// the broker being unreachable. Retrying will not fix it.
type ConfigError struct {
	Transport string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s transport misconfigured: %v", e.Transport, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError for the named transport.
func NewConfigError(transport string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Transport: transport, Err: err}
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
