// Package channel provides an in-memory transport backed by watermill's
// GoChannel. Units built with the same transport URI share one hub, so
// several units inside a process see each other's broadcasts. It is used for
// tests and local development.
package channel

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/unitcast/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// DefaultHub is the hub name used when the transport URI is empty.
const DefaultHub = "default"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

type hub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

var (
	hubsMu sync.Mutex
	hubs   = map[string]*hub{}
)

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build returns a transport attached to the hub named by the transport URI,
// creating the hub on first use.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	name := hubName(cfg.GetTransportURI())

	hubsMu.Lock()
	h, ok := hubs[name]
	if !ok {
		pub, sub := Factory(gochannel.Config{OutputChannelBuffer: 64}, logger)
		h = &hub{publisher: pub, subscriber: sub}
		hubs[name] = h
	}
	hubsMu.Unlock()

	return transport.Transport{
		Publisher:  sharedPublisher{h.publisher},
		Subscriber: sharedSubscriber{h.subscriber},
	}, nil
}

// Disconnect closes the named hub. Every open subscription on it ends, which
// looks to the units like a dropped connection. The next Build creates a
// fresh hub.
func Disconnect(uri string) error {
	name := hubName(uri)

	hubsMu.Lock()
	h, ok := hubs[name]
	delete(hubs, name)
	hubsMu.Unlock()

	if !ok {
		return nil
	}
	return transport.Transport{Publisher: h.publisher, Subscriber: h.subscriber}.Close()
}

func hubName(uri string) string {
	if uri == "" {
		return DefaultHub
	}
	return uri
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// sharedPublisher and sharedSubscriber detach Close from the hub so one unit
// shutting down does not cut off the others. Subscriptions still end when the
// subscribing context is cancelled.
type sharedPublisher struct{ message.Publisher }

func (sharedPublisher) Close() error { return nil }

type sharedSubscriber struct{ message.Subscriber }

func (sharedSubscriber) Close() error { return nil }
