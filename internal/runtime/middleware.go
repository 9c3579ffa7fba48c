package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/unitcast/internal/runtime/errors"
	idspkg "github.com/drblury/unitcast/internal/runtime/ids"
	loggingpkg "github.com/drblury/unitcast/internal/runtime/logging"
	metadatapkg "github.com/drblury/unitcast/internal/runtime/metadata"
)

const tracerName = "github.com/drblury/unitcast"

// MiddlewareBuilder constructs a handler middleware for the given network.
type MiddlewareBuilder func(*Network) (message.HandlerMiddleware, error)

// MiddlewareRegistration describes one layer of the dispatch chain. Set
// either Middleware or Builder. A Builder returning a nil middleware is
// skipped.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the chain every network applies around its
// dispatcher unless disabled. The first entry is the outermost layer.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		CorrelationIDMiddleware(),
		LogMessagesMiddleware(nil),
		TracerMiddleware(),
		RecovererMiddleware(),
	}
}

// CorrelationIDMiddleware makes sure every inbound message carries a
// correlation id and exposes it to handlers through the context, so that
// broadcasts made while handling it reuse the id.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "correlation_id",
		Middleware: correlationIDMiddleware,
	}
}

// LogMessagesMiddleware logs every inbound message at trace level. A nil
// logger means the network's own logger.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(n *Network) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = n.logger
			}
			if l == nil {
				return nil, errspkg.ErrLoggerRequired
			}
			return logMessagesMiddleware(l), nil
		},
	}
}

// TracerMiddleware wraps dispatch in an OpenTelemetry consumer span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(n *Network) (message.HandlerMiddleware, error) {
			return tracerMiddleware(n.channel, n.unit), nil
		},
	}
}

// RecovererMiddleware turns panics anywhere below it into errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

func (n *Network) buildMiddleware(reg MiddlewareRegistration) (message.HandlerMiddleware, error) {
	switch {
	case reg.Middleware != nil:
		return reg.Middleware, nil
	case reg.Builder != nil:
		return reg.Builder(n)
	default:
		return nil, errors.New("middleware registration requires Middleware or Builder")
	}
}

// chainMiddlewares wraps h so that registrations[0] runs first.
func (n *Network) chainMiddlewares(h message.HandlerFunc, registrations []MiddlewareRegistration) (message.HandlerFunc, error) {
	built := make([]message.HandlerMiddleware, 0, len(registrations))
	for _, reg := range registrations {
		mw, err := n.buildMiddleware(reg)
		if err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return nil, fmt.Errorf("register middleware %s: %w", name, err)
		}
		if mw != nil {
			built = append(built, mw)
		}
	}
	for i := len(built) - 1; i >= 0; i-- {
		h = built[i](h)
	}
	return h, nil
}

type correlationIDKey struct{}

// ContextWithCorrelationID returns ctx carrying id for outgoing broadcasts.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id stored in ctx.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

func correlationIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		id := middleware.MessageCorrelationID(msg)
		if id == "" {
			id = idspkg.New()
			middleware.SetCorrelationID(id, msg)
		}
		msg.SetContext(ContextWithCorrelationID(msg.Context(), id))
		return h(msg)
	}
}

func logMessagesMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Trace("Received message", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"payload":      string(msg.Payload),
				"metadata":     msg.Metadata,
			})
			return h(msg)
		}
	}
}

func tracerMiddleware(channel, unit string) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx, span := otel.Tracer(tracerName).Start(
				msg.Context(),
				"unitcast.dispatch",
				trace.WithSpanKind(trace.SpanKindConsumer),
			)
			defer span.End()
			msg.SetContext(ctx)

			span.SetAttributes(
				attribute.String("messaging.destination.name", channel),
				attribute.String("messaging.message.id", msg.UUID),
				attribute.String("unitcast.unit", unit),
				attribute.String("unitcast.origin", msg.Metadata.Get(metadatapkg.KeyOrigin)),
				attribute.String("unitcast.payload_type", msg.Metadata.Get(metadatapkg.KeyPayloadType)),
			)
			produced, err := h(msg)
			if err != nil {
				span.RecordError(err)
			}
			return produced, err
		}
	}
}
