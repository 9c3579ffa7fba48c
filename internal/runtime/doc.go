/*
Package runtime implements the broadcast network behind unitcast.

# Package Structure

## Network (network.go, supervisor.go)

Network owns the configuration, the payload registry, the feedback engine and
the transport. Start launches the resilience loop in supervisor.go, which
subscribes to the channel, feeds messages through the handler chain and
resubscribes after RetryDelay when the subscription ends.

## Dispatch (dispatcher.go, hooks.go)

Dispatcher turns one inbound wire string into exactly one Outcome: it drops
messages for other channels, malformed envelopes, unknown or undecodable
types and self-sent payloads, routes feedback responses to their session and
hands everything else to the registered handler.

## Publishing (publisher.go, registration.go)

Broadcast stamps the local unit as origin and publishes the envelope.
RequestFeedback and Respond build on it for request and response exchanges.

## Observability (middleware.go, metrics.go, status.go)

The middleware chain adds correlation IDs, message logging, tracing and panic
recovery. Metrics records dispatch, broadcast, feedback and connection
counters. status.go serves a JSON view of the network over HTTP.

# Sub-packages

  - config/: construction-time settings, YAML loading and validation
  - envelope/: the <type id>&<json> wire form
  - errors/: sentinel errors
  - feedback/: feedback sessions and their correlation engine
  - ids/: ULID generation
  - jsoncodec/: JSON marshaling
  - logging/: logger interface and adapters
  - metadata/: message metadata keys and helpers
  - payload/: the payload contract and type registry
  - transport/: glue to the transport registry
*/
package runtime
