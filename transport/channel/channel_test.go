package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/unitcast/transport"
	"github.com/drblury/unitcast/transport/transporttest"
)

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "channel", caps.Name)
	assert.True(t, caps.SupportsOrdering)
	assert.True(t, caps.SupportsReliableDelivery())
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.ChannelCapabilities, Capabilities())
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "subscription closed")
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBuildSharesHubPerURI(t *testing.T) {
	uri := t.Name()
	defer func() { _ = Disconnect(uri) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Build(ctx, &transporttest.Config{TransportURI: uri, Unit: "a"}, watermill.NopLogger{})
	require.NoError(t, err)
	b, err := Build(ctx, &transporttest.Config{TransportURI: uri, Unit: "b"}, watermill.NopLogger{})
	require.NoError(t, err)

	subA, err := a.Subscriber.Subscribe(ctx, "net")
	require.NoError(t, err)
	subB, err := b.Subscriber.Subscribe(ctx, "net")
	require.NoError(t, err)

	require.NoError(t, a.Publisher.Publish("net", message.NewMessage("1", []byte("hello"))))

	assert.Equal(t, "hello", string(receive(t, subA).Payload))
	assert.Equal(t, "hello", string(receive(t, subB).Payload))
}

func TestCloseDoesNotAffectOtherUnits(t *testing.T) {
	uri := t.Name()
	defer func() { _ = Disconnect(uri) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Build(ctx, &transporttest.Config{TransportURI: uri}, watermill.NopLogger{})
	require.NoError(t, err)
	b, err := Build(ctx, &transporttest.Config{TransportURI: uri}, watermill.NopLogger{})
	require.NoError(t, err)

	sub, err := b.Subscriber.Subscribe(ctx, "net")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	require.NoError(t, b.Publisher.Publish("net", message.NewMessage("1", []byte("still here"))))
	assert.Equal(t, "still here", string(receive(t, sub).Payload))
}

func TestDisconnectEndsSubscriptions(t *testing.T) {
	uri := t.Name()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := Build(ctx, &transporttest.Config{TransportURI: uri}, watermill.NopLogger{})
	require.NoError(t, err)
	sub, err := tr.Subscriber.Subscribe(ctx, "net")
	require.NoError(t, err)

	require.NoError(t, Disconnect(uri))

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription did not close")
	}

	assert.NoError(t, Disconnect(uri))
}

func TestBuildUsesFactory(t *testing.T) {
	originalFactory := Factory
	defer func() { Factory = originalFactory }()

	uri := t.Name()
	defer func() { _ = Disconnect(uri) }()

	pub := &transporttest.Publisher{}
	sub := &transporttest.Subscriber{}
	calls := 0
	Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		calls++
		return pub, sub
	}

	for i := 0; i < 2; i++ {
		_, err := Build(context.Background(), &transporttest.Config{TransportURI: uri}, watermill.NopLogger{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	require.NoError(t, Disconnect(uri))
	assert.True(t, pub.Closed())
	assert.True(t, sub.Closed())
}

func TestHubName(t *testing.T) {
	assert.Equal(t, DefaultHub, hubName(""))
	assert.Equal(t, "x", hubName("x"))
}
