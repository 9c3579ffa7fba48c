package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConfig struct {
	pubSubSystem string
}

func (m *mockConfig) GetNetwork() string                 { return "net" }
func (m *mockConfig) GetUnit() string                    { return "unit" }
func (m *mockConfig) GetPubSubSystem() string            { return m.pubSubSystem }
func (m *mockConfig) GetTransportURI() string            { return "" }
func (m *mockConfig) GetTransportTimeout() time.Duration { return time.Second }
func (m *mockConfig) GetKafkaBrokers() []string          { return nil }
func (m *mockConfig) GetAWSRegion() string               { return "" }
func (m *mockConfig) GetAWSAccountID() string            { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string          { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string      { return "" }
func (m *mockConfig) GetAWSEndpoint() string             { return "" }

type mockPublisher struct{ closeErr error }

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }

func (m *mockPublisher) Close() error { return m.closeErr }

type mockSubscriber struct{ closeErr error }

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error { return m.closeErr }

func okBuilder(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return Transport{Publisher: &mockPublisher{}, Subscriber: &mockSubscriber{}}, nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg.builders)
	assert.NotNil(t, reg.capabilities)
	assert.Empty(t, reg.Names())
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test-transport", okBuilder)

	assert.True(t, reg.Has("test-transport"))
	assert.False(t, reg.Has("other"))

	tr, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "test-transport"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}

func TestRegistry_BuildUnknownIsConfigError(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", okBuilder)
	reg.Register("a", okBuilder)

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "carrier-pigeon"}, watermill.NopLogger{})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, ErrUnknownTransport)
	assert.Contains(t, err.Error(), "[a b]")

	_, err = reg.Build(context.Background(), nil, watermill.NopLogger{})
	assert.True(t, IsConfigError(err))
}

func TestRegistry_BuildPropagatesBuilderError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("dial refused")
	reg.Register("flaky", func(context.Context, Config, watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, boom
	})

	_, err := reg.Build(context.Background(), &mockConfig{pubSubSystem: "flaky"}, watermill.NopLogger{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsConfigError(err))
}

func TestRegistry_Capabilities(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWithCapabilities("redis", okBuilder, RedisCapabilities)

	assert.Equal(t, RedisCapabilities, reg.GetCapabilities("redis"))
	assert.Equal(t, Capabilities{Name: "missing"}, reg.GetCapabilities("missing"))
}

func TestConfigError(t *testing.T) {
	inner := errors.New("bad uri")
	err := NewConfigError("redis", inner)
	assert.EqualError(t, err, "redis transport misconfigured: bad uri")
	assert.ErrorIs(t, err, inner)
	assert.True(t, IsConfigError(err))
	assert.Nil(t, NewConfigError("redis", nil))
	assert.False(t, IsConfigError(inner))
}

func TestTransport_Close(t *testing.T) {
	assert.NoError(t, Transport{}.Close())

	pubErr := errors.New("pub")
	subErr := errors.New("sub")
	err := Transport{
		Publisher:  &mockPublisher{closeErr: pubErr},
		Subscriber: &mockSubscriber{closeErr: subErr},
	}.Close()
	assert.ErrorIs(t, err, pubErr)
	assert.ErrorIs(t, err, subErr)
}
