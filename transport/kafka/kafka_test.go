package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/unitcast/transport"
	"github.com/drblury/unitcast/transport/transporttest"
)

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "kafka", caps.Name)
	assert.True(t, caps.SupportsOrdering)
	assert.Equal(t, transport.KafkaCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	validCfg := &transporttest.Config{
		Unit:             "unit-a",
		KafkaBrokers:     []string{"localhost:9092"},
		TransportTimeout: 3 * time.Second,
	}

	t.Run("consumer group per unit", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		originalSubFactory := SubscriberFactory
		defer func() {
			PublisherFactory = originalPubFactory
			SubscriberFactory = originalSubFactory
		}()

		mockPub := &transporttest.Publisher{}
		mockSub := &transporttest.Subscriber{}
		var pubCfg kafka.PublisherConfig
		var subCfg kafka.SubscriberConfig

		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			pubCfg = cfg
			return mockPub, nil
		}
		SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			subCfg = cfg
			return mockSub, nil
		}

		tr, err := Build(context.Background(), validCfg, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, mockPub, tr.Publisher)
		assert.Equal(t, mockSub, tr.Subscriber)

		assert.Equal(t, []string{"localhost:9092"}, pubCfg.Brokers)
		assert.Equal(t, "unit-a", subCfg.ConsumerGroup)
		require.NotNil(t, subCfg.OverwriteSaramaConfig)
		assert.Equal(t, sarama.OffsetNewest, subCfg.OverwriteSaramaConfig.Consumer.Offsets.Initial)
		assert.Equal(t, 3*time.Second, subCfg.OverwriteSaramaConfig.Net.DialTimeout)
		assert.Equal(t, "unit-a", pubCfg.OverwriteSaramaConfig.ClientID)
	})

	t.Run("missing brokers or unit is a config error", func(t *testing.T) {
		_, err := Build(context.Background(), &transporttest.Config{Unit: "a"}, watermill.NopLogger{})
		assert.True(t, transport.IsConfigError(err))

		_, err = Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"k:9092"}}, watermill.NopLogger{})
		assert.True(t, transport.IsConfigError(err))
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		defer func() { PublisherFactory = originalPubFactory }()

		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), validCfg, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("subscriber failure closes publisher", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		originalSubFactory := SubscriberFactory
		defer func() {
			PublisherFactory = originalPubFactory
			SubscriberFactory = originalSubFactory
		}()

		mockPub := &transporttest.Publisher{}
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return mockPub, nil
		}
		SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}

		_, err := Build(context.Background(), validCfg, watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.True(t, mockPub.Closed())
	})
}
