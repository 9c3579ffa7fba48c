// Package unitcast connects the units of a distributed system to a shared
// broadcast channel. Every unit publishes typed payloads to the channel and
// receives what the others publish; a unit never sees its own broadcasts
// unless the payload type asks for it.
//
// Payloads travel as a single string, "<type id>&<JSON object>", where the
// JSON object carries an "origin" property naming the sender. Each network
// keeps a registry mapping type identifiers to Go types and handlers, so
// units built from different releases can share a channel: unknown types are
// logged and skipped.
//
// # Feedback
//
// Broadcasts are not confirmed. When a sender needs answers it calls
// RequestFeedback with a payload embedding FeedbackBase. Receivers reply with
// Respond (or register a Responder), and the sender's feedback session
// collects one response per origin until its condition holds or its timeout
// passes.
//
// # Transports
//
// The transport is chosen by Config.PubSubSystem:
//   - redis: Redis pub/sub (default)
//   - nats: NATS core subjects
//   - kafka: one consumer group per unit
//   - rabbitmq: fanout exchange with a queue per unit
//   - aws: SNS topic with an SQS queue per unit, LocalStack supported
//   - channel: in-memory hub for tests and local development
//
// # Resilience
//
// Start returns immediately and runs a loop that subscribes, consumes, and
// after a dropped or failed subscription waits Config.RetryDelay before
// trying again. ConnectionEvents reports each transition. Misconfiguration is
// never retried: NewNetwork returns a degraded network whose Err explains the
// problem, and TryNewNetwork returns the error instead.
//
// # Middleware and hooks
//
// Inbound messages pass through a middleware chain for correlation IDs,
// message logging, OpenTelemetry tracing and panic recovery before the
// dispatcher decodes them. DispatchHooks observe every dispatch outcome, and
// Prometheus metrics are recorded when a registerer is supplied or
// Config.MetricsEnabled is set.
package unitcast
