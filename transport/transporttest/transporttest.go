// Package transporttest provides helpers for testing transport builders.
package transporttest

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a plain implementation of transport.Config.
type Config struct {
	Network            string
	Unit               string
	PubSubSystem       string
	TransportURI       string
	TransportTimeout   time.Duration
	KafkaBrokers       []string
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

func (c *Config) GetNetwork() string                 { return c.Network }
func (c *Config) GetUnit() string                    { return c.Unit }
func (c *Config) GetPubSubSystem() string            { return c.PubSubSystem }
func (c *Config) GetTransportURI() string            { return c.TransportURI }
func (c *Config) GetTransportTimeout() time.Duration { return c.TransportTimeout }
func (c *Config) GetKafkaBrokers() []string          { return c.KafkaBrokers }
func (c *Config) GetAWSRegion() string               { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string            { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string          { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string      { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string             { return c.AWSEndpoint }

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message
	Err      error
	closed   bool
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if p.messages == nil {
		p.messages = make(map[string][]*message.Message)
	}
	p.messages[topic] = append(p.messages[topic], messages...)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Messages returns what was published on topic.
func (p *Publisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.messages[topic]...)
}

// Closed reports whether Close was called.
func (p *Publisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Subscriber hands out a closed channel, or Err when set.
type Subscriber struct {
	Err    error
	closed bool
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *Subscriber) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Subscriber) Closed() bool { return s.closed }
