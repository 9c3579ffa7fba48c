// Package transports imports every built-in transport for registration with
// the default registry.
package transports

import (
	_ "github.com/drblury/unitcast/transport/aws"
	_ "github.com/drblury/unitcast/transport/channel"
	_ "github.com/drblury/unitcast/transport/kafka"
	_ "github.com/drblury/unitcast/transport/nats"
	_ "github.com/drblury/unitcast/transport/rabbitmq"
	_ "github.com/drblury/unitcast/transport/redis"
)
