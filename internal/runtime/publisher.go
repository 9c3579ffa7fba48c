package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/unitcast/internal/runtime/envelope"
	errspkg "github.com/drblury/unitcast/internal/runtime/errors"
	"github.com/drblury/unitcast/internal/runtime/feedback"
	metadatapkg "github.com/drblury/unitcast/internal/runtime/metadata"
	"github.com/drblury/unitcast/internal/runtime/payload"
)

// NewBroadcastMessage encodes p as an envelope stamped with origin and wraps
// it in a watermill message carrying the broadcast headers.
func NewBroadcastMessage(typeID, origin, channel string, p payload.Payload) (*message.Message, error) {
	if p == nil {
		return nil, errspkg.ErrPayloadRequired
	}
	wire, err := envelope.Encode(typeID, p, origin)
	if err != nil {
		return nil, err
	}

	md := metadatapkg.New(
		metadatapkg.KeyOrigin, origin,
		metadatapkg.KeyPayloadType, typeID,
		metadatapkg.KeyChannel, channel,
	)
	if carrier, ok := p.(feedback.Carrier); ok {
		md = md.With(metadatapkg.KeyFeedbackID, carrier.FeedbackID())
	}

	msg := message.NewMessage(watermill.NewULID(), []byte(wire))
	msg.Metadata = metadatapkg.ToWatermill(md)
	return msg, nil
}

// Broadcast publishes p on the network's channel with the local unit as
// origin. Delivery is not confirmed; use RequestFeedback when replies matter.
func (n *Network) Broadcast(ctx context.Context, p payload.Payload) error {
	if n == nil {
		return errspkg.ErrNetworkRequired
	}
	if p == nil {
		return errspkg.ErrPayloadRequired
	}
	if n.setupErr != nil {
		return n.unavailable()
	}
	if n.isClosed() {
		return errspkg.ErrNetworkClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	typeID, ok := n.registry.IdentifierFor(p)
	if !ok {
		return fmt.Errorf("%w: %T", errspkg.ErrPayloadTypeUnregistered, p)
	}

	p.SetOrigin(n.unit)
	msg, err := NewBroadcastMessage(typeID, n.unit, n.channel, p)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typeID, err)
	}

	correlationID := CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = msg.UUID
	}
	middleware.SetCorrelationID(correlationID, msg)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "unitcast.broadcast",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", n.channel),
			attribute.String("messaging.message.id", msg.UUID),
			attribute.String("unitcast.payload_type", typeID),
		),
	)
	defer span.End()
	msg.SetContext(ctx)

	pub := n.currentPublisher()
	if pub == nil {
		n.metrics.ObserveBroadcast(typeID, errspkg.ErrTransportUnavailable)
		return errspkg.ErrTransportUnavailable
	}

	err = pub.Publish(n.channel, msg)
	n.metrics.ObserveBroadcast(typeID, err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("broadcast %s on %s: %w", typeID, n.channel, err)
	}
	return nil
}

// RequestFeedback opens a feedback session, stamps req with its id and the
// REQUEST state and broadcasts it. The session is disposed when publishing
// fails.
func (n *Network) RequestFeedback(ctx context.Context, req feedback.Carrier, opts feedback.Options) (*feedback.Session, error) {
	if n == nil {
		return nil, errspkg.ErrNetworkRequired
	}
	if req == nil {
		return nil, errspkg.ErrPayloadRequired
	}
	if n.setupErr != nil {
		return nil, n.unavailable()
	}

	session, err := n.engine.Open(opts)
	if err != nil {
		return nil, err
	}
	req.SetFeedbackID(session.ID())
	req.SetFeedbackState(feedback.StateRequest)

	if err := n.Broadcast(ctx, req); err != nil {
		session.Dispose()
		return nil, err
	}
	return session, nil
}

// Respond answers req: resp gets the request's feedback id and the RESPONSE
// state and is broadcast.
func (n *Network) Respond(ctx context.Context, req, resp feedback.Carrier) error {
	if n == nil {
		return errspkg.ErrNetworkRequired
	}
	if req == nil || resp == nil {
		return errspkg.ErrPayloadRequired
	}
	if req.FeedbackID() == "" {
		return errspkg.ErrFeedbackIDMissing
	}
	resp.SetFeedbackID(req.FeedbackID())
	resp.SetFeedbackState(feedback.StateResponse)
	return n.Broadcast(ctx, resp)
}
