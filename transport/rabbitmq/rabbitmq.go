// Package rabbitmq provides a RabbitMQ/AMQP transport. Each channel is a
// fanout exchange; each unit binds its own durable queue to it.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/unitcast/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

const defaultHeartbeat = 10 * time.Second

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// Build creates a new RabbitMQ transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	uri := cfg.GetTransportURI()
	if err := validateURI(uri); err != nil {
		return transport.Transport{}, transport.NewConfigError(TransportName, err)
	}

	amqpConfig := amqp.NewDurablePubSubConfig(
		uri,
		amqp.GenerateQueueNameTopicNameWithSuffix(cfg.GetUnit()),
	)

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:    uri,
		AmqpConfig: dialConfig(cfg),
		Reconnect:  amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: connOwningSubscriber{Subscriber: subscriber, conn: conn},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}

func dialConfig(cfg transport.Config) *amqp091.Config {
	c := &amqp091.Config{
		Heartbeat: defaultHeartbeat,
		Locale:    "en_US",
	}
	if timeout := cfg.GetTransportTimeout(); timeout > 0 {
		c.Dial = amqp091.DefaultDial(timeout)
	}
	if unit := cfg.GetUnit(); unit != "" {
		c.Properties = amqp091.NewConnectionProperties()
		c.Properties.SetClientConnectionName(unit)
	}
	return c
}

func validateURI(raw string) error {
	if raw == "" {
		return errors.New("transport URI is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// connOwningSubscriber closes the shared connection after the subscriber, so
// discarding a transport releases its socket.
type connOwningSubscriber struct {
	message.Subscriber
	conn interface{ Close() error }
}

func (s connOwningSubscriber) Close() error {
	return errors.Join(s.Subscriber.Close(), s.conn.Close())
}
