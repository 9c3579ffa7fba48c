// Package kafka provides a Kafka transport. Every unit consumes through its
// own consumer group, named after the unit, so each unit sees every message
// on the topic.
package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/unitcast/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a new Kafka transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return transport.Transport{}, transport.NewConfigError(TransportName, errors.New("at least one broker is required"))
	}
	unit := cfg.GetUnit()
	if unit == "" {
		return transport.Transport{}, transport.NewConfigError(TransportName, errors.New("unit is required for the consumer group"))
	}

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherSaramaConfig(cfg),
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         unit,
			OverwriteSaramaConfig: subscriberSaramaConfig(cfg),
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
	return transport.KafkaCapabilities
}

func publisherSaramaConfig(cfg transport.Config) *sarama.Config {
	sc := kafka.DefaultSaramaSyncPublisherConfig()
	applyCommon(sc, cfg)
	return sc
}

// subscriberSaramaConfig starts a new consumer group at the newest offset, so
// a unit joining the network does not replay history.
func subscriberSaramaConfig(cfg transport.Config) *sarama.Config {
	sc := kafka.DefaultSaramaSubscriberConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	applyCommon(sc, cfg)
	return sc
}

func applyCommon(sc *sarama.Config, cfg transport.Config) {
	if unit := cfg.GetUnit(); unit != "" {
		sc.ClientID = unit
	}
	if timeout := cfg.GetTransportTimeout(); timeout > 0 {
		sc.Net.DialTimeout = timeout
	}
}
