package transport

// Capabilities describes how a transport backend delivers broadcasts.
type Capabilities struct {
	// Name is the pubsub system value the transport registers under.
	Name string

	// SupportsOrdering indicates messages from one publisher arrive in publish order.
	SupportsOrdering bool

	// SupportsAck indicates the transport tracks explicit acknowledgment.
	SupportsAck bool

	// SupportsNack indicates a nacked message is redelivered.
	SupportsNack bool

	// SupportsTracing indicates metadata travels with the message, so trace
	// and origin headers survive the hop.
	SupportsTracing bool

	// Durable indicates messages published while a unit is disconnected are
	// kept for it. Fire-and-forget transports drop them.
	Durable bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// SupportsReliableDelivery returns true if the transport supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// LosesMessagesWhileDisconnected reports whether a unit misses broadcasts sent
// during a connection drop.
func (c Capabilities) LosesMessagesWhileDisconnected() bool {
	return !c.Durable
}

// Predefined capability sets for the built-in transports.
var (
	// RedisCapabilities for Redis PUBLISH/SUBSCRIBE.
	RedisCapabilities = Capabilities{
		Name:             "redis",
		SupportsOrdering: true,
		SupportsTracing:  true,
		MaxMessageSize:   536870912, // 512MB bulk string limit
	}

	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
	}

	// NATSCapabilities for NATS Core.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// KafkaCapabilities for Apache Kafka with one consumer group per unit.
	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsTracing:  true,
		Durable:          true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// RabbitMQCapabilities for a fanout exchange with one queue per unit.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
		Durable:          true,
	}

	// AWSCapabilities for an SNS topic fanned out to one SQS queue per unit.
	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsAck:     true,
		SupportsNack:    true,
		SupportsTracing: true,
		Durable:         true,
		MaxMessageSize:  262144, // 256KB
	}
)

// GetCapabilities returns the capabilities registered for a transport name.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
