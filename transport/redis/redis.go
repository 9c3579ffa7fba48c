// Package redis provides a Redis PUBLISH/SUBSCRIBE transport. Redis pub/sub
// carries a bare string per message, so only the payload crosses the wire;
// the channel a message arrived on is restored as metadata on receipt.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	goredis "github.com/redis/go-redis/v9"

	metadatapkg "github.com/drblury/unitcast/internal/runtime/metadata"
	"github.com/drblury/unitcast/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "redis"

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("redis transport closed")

// Subscription is a live SUBSCRIBE on one channel.
type Subscription interface {
	ReceiveMessage(ctx context.Context) (*goredis.Message, error)
	Close() error
}

// Conn is the part of a Redis client the transport needs.
type Conn interface {
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

// ConnFactory dials Redis. Tests replace it to avoid a live server.
var ConnFactory = func(ctx context.Context, opts *goredis.Options) (Conn, error) {
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return clientConn{client}, nil
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RedisCapabilities)
}

// Build parses the transport URI and connects. A URI that cannot be parsed is
// a transport.ConfigError; a server that cannot be reached is not.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	uri := cfg.GetTransportURI()
	if uri == "" {
		return transport.Transport{}, transport.NewConfigError(TransportName, errors.New("transport URI is required"))
	}

	opts, err := goredis.ParseURL(uri)
	if err != nil {
		return transport.Transport{}, transport.NewConfigError(TransportName, err)
	}
	if timeout := cfg.GetTransportTimeout(); timeout > 0 {
		opts.DialTimeout = timeout
	}
	if opts.ClientName == "" && cfg.GetUnit() != "" {
		opts.ClientName = cfg.GetUnit()
	}

	dialCtx := ctx
	if timeout := cfg.GetTransportTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := ConnFactory(dialCtx, opts)
	if err != nil {
		return transport.Transport{}, err
	}

	pubSub := NewPubSub(conn, logger)
	return transport.Transport{
		Publisher:  pubSub,
		Subscriber: pubSub,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RedisCapabilities
}

// PubSub implements message.Publisher and message.Subscriber over one Conn.
type PubSub struct {
	conn   Conn
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	subs    map[Subscription]struct{}
	wg      sync.WaitGroup
}

// NewPubSub wraps conn.
func NewPubSub(conn Conn, logger watermill.LoggerAdapter) *PubSub {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &PubSub{
		conn:    conn,
		logger:  logger,
		closing: make(chan struct{}),
		subs:    make(map[Subscription]struct{}),
	}
}

// Publish sends each message payload to the Redis channel named by topic.
func (p *PubSub) Publish(topic string, messages ...*message.Message) error {
	if p.isClosed() {
		return ErrClosed
	}
	for _, msg := range messages {
		if err := p.conn.Publish(msg.Context(), topic, string(msg.Payload)); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
	}
	return nil
}

// Subscribe starts a SUBSCRIBE on topic. The returned channel closes when ctx
// ends, the transport closes, or the connection fails.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	sub, err := p.conn.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = sub.Close()
		return nil, ErrClosed
	}
	p.subs[sub] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	out := make(chan *message.Message)
	go p.consume(ctx, topic, sub, out)
	return out, nil
}

func (p *PubSub) consume(ctx context.Context, topic string, sub Subscription, out chan<- *message.Message) {
	defer p.wg.Done()
	defer close(out)
	defer p.release(sub)

	fields := watermill.LogFields{"topic": topic}
	for {
		received, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil && !p.isClosed() {
				p.logger.Error("Redis subscription failed", err, fields)
			}
			return
		}

		msg := message.NewMessage(watermill.NewULID(), []byte(received.Payload))
		msg.Metadata.Set(metadatapkg.KeyChannel, received.Channel)
		msgCtx, cancel := context.WithCancel(ctx)
		msg.SetContext(msgCtx)

		delivered := p.deliver(ctx, msg, out)
		cancel()
		if !delivered {
			return
		}
	}
}

// deliver hands msg to the consumer and waits until it is acked or nacked.
// Redis keeps no copy, so a nacked message is logged and dropped.
func (p *PubSub) deliver(ctx context.Context, msg *message.Message, out chan<- *message.Message) bool {
	select {
	case out <- msg:
	case <-ctx.Done():
		return false
	case <-p.closing:
		return false
	}

	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		p.logger.Info("Message nacked, Redis pub/sub cannot redeliver", watermill.LogFields{"message_uuid": msg.UUID})
	case <-ctx.Done():
		return false
	case <-p.closing:
		return false
	}
	return true
}

func (p *PubSub) release(sub Subscription) {
	p.mu.Lock()
	delete(p.subs, sub)
	p.mu.Unlock()
	_ = sub.Close()
}

func (p *PubSub) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close ends every subscription and closes the connection.
func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closing)
	subs := make([]Subscription, 0, len(p.subs))
	for sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	p.wg.Wait()
	return p.conn.Close()
}

type clientConn struct {
	client *goredis.Client
}

func (c clientConn) Publish(ctx context.Context, channel, payload string) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

func (c clientConn) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	sub := c.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

func (c clientConn) Close() error {
	return c.client.Close()
}
