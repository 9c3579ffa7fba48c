// Package nats provides a NATS Core transport. Subscriptions use no queue
// group, so every unit subscribed to a subject receives each message.
package nats

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/unitcast/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build creates a new NATS transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	uri, err := serverURL(cfg.GetTransportURI())
	if err != nil {
		return transport.Transport{}, transport.NewConfigError(TransportName, err)
	}

	options := connectOptions(cfg)
	marshaler := &nats.NATSMarshaler{}
	jetStream := nats.JetStreamConfig{Disabled: true}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:         uri,
			NatsOptions: options,
			Marshaler:   marshaler,
			JetStream:   jetStream,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:              uri,
			NatsOptions:      options,
			Unmarshaler:      marshaler,
			JetStream:        jetStream,
			SubscribeTimeout: cfg.GetTransportTimeout(),
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}

func connectOptions(cfg transport.Config) []nc.Option {
	var options []nc.Option
	if timeout := cfg.GetTransportTimeout(); timeout > 0 {
		options = append(options, nc.Timeout(timeout))
	} else {
		options = append(options, nc.Timeout(5*time.Second))
	}
	if unit := cfg.GetUnit(); unit != "" {
		options = append(options, nc.Name(unit))
	}
	return options
}

func serverURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("transport URI is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return raw, nil
}
