package runtime

import (
	"context"

	errspkg "github.com/drblury/unitcast/internal/runtime/errors"
	"github.com/drblury/unitcast/internal/runtime/feedback"
	loggingpkg "github.com/drblury/unitcast/internal/runtime/logging"
	"github.com/drblury/unitcast/internal/runtime/payload"
)

// CarrierPointer is a pointer to a feedback payload type.
type CarrierPointer[T any] interface {
	*T
	feedback.Carrier
}

// RegisterPayload binds typeID to T on the network and installs handler for
// received values. Register every type before calling Start.
func RegisterPayload[T any, P payload.PayloadPointer[T]](n *Network, typeID string, handler payload.Handler[P]) error {
	if n == nil {
		return errspkg.ErrNetworkRequired
	}
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	return payload.Register[T, P](n.registry, typeID, handler)
}

// RegisterPayloadType binds typeID to T without a handler, for types the unit
// only sends or only collects as feedback responses.
func RegisterPayloadType[T any, P payload.PayloadPointer[T]](n *Network, typeID string) error {
	if n == nil {
		return errspkg.ErrNetworkRequired
	}
	return payload.RegisterType[T, P](n.registry, typeID)
}

// Responder computes the reply to a feedback request. Returning a nil
// response sends nothing.
type Responder[P any] func(ctx context.Context, req P) (feedback.Carrier, error)

// RegisterResponder binds typeID to the feedback request type T and answers
// every received request with the carrier respond returns. Values of T that
// arrive in the RESPONSE state without a matching session are ignored.
func RegisterResponder[T any, P CarrierPointer[T]](n *Network, typeID string, respond Responder[P]) error {
	if n == nil {
		return errspkg.ErrNetworkRequired
	}
	if respond == nil {
		return errspkg.ErrHandlerRequired
	}

	handler := func(ctx context.Context, req P) {
		if req.FeedbackState() != feedback.StateRequest {
			return
		}
		fields := loggingpkg.LogFields{
			"payload_type": typeID,
			"feedback_id":  req.FeedbackID(),
			"requester":    req.Origin(),
		}
		resp, err := respond(ctx, req)
		if err != nil {
			n.logger.Error("Feedback responder failed", err, fields)
			return
		}
		if resp == nil {
			return
		}
		if err := n.Respond(ctx, req, resp); err != nil {
			n.logger.Error("Sending feedback response failed", err, fields)
		}
	}
	return payload.Register[T, P](n.registry, typeID, handler)
}
