package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/unitcast/internal/runtime/envelope"
	"github.com/drblury/unitcast/internal/runtime/feedback"
	metadatapkg "github.com/drblury/unitcast/internal/runtime/metadata"
	"github.com/drblury/unitcast/internal/runtime/payload"
)

// Outcome is what the dispatcher did with one inbound message.
type Outcome string

const (
	OutcomeDispatched       Outcome = "dispatched"
	OutcomeUnhandled        Outcome = "unhandled"
	OutcomeFeedbackRecorded Outcome = "feedback_recorded"
	OutcomeHandlerPanicked  Outcome = "handler_panicked"

	OutcomeDroppedChannel     Outcome = "dropped_channel"
	OutcomeDroppedMalformed   Outcome = "dropped_malformed"
	OutcomeDroppedUnknownType Outcome = "dropped_unknown_type"
	OutcomeDroppedUndecodable Outcome = "dropped_undecodable"
	OutcomeDroppedSelf        Outcome = "dropped_self"
)

// Dropped reports whether the message was discarded without reaching a
// handler or a feedback session.
func (o Outcome) Dropped() bool {
	switch o {
	case OutcomeDroppedChannel, OutcomeDroppedMalformed, OutcomeDroppedUnknownType,
		OutcomeDroppedUndecodable, OutcomeDroppedSelf:
		return true
	}
	return false
}

// Dispatcher turns wire strings received on a channel into handler calls.
// It never returns an error for a bad message: malformed envelopes, unknown
// types and undecodable bodies are dropped so that one bad message cannot stop
// the subscription.
type Dispatcher struct {
	channel  string
	unit     string
	registry *payload.Registry
	engine   *feedback.Engine
	hooks    DispatchHooks
	now      func() time.Time
}

// NewDispatcher returns a dispatcher for unit listening on channel.
func NewDispatcher(channel, unit string, registry *payload.Registry, engine *feedback.Engine, hooks DispatchHooks) *Dispatcher {
	return &Dispatcher{
		channel:  channel,
		unit:     unit,
		registry: registry,
		engine:   engine,
		hooks:    hooks,
		now:      time.Now,
	}
}

// Dispatch handles one wire string that arrived on channel.
func (d *Dispatcher) Dispatch(ctx context.Context, channel, wire string) Outcome {
	outcome, _ := d.dispatch(DispatchInfo{Channel: channel, Context: ctx}, wire)
	return outcome
}

// HandleMessage adapts Dispatch to a watermill handler. The channel is taken
// from the message metadata and defaults to the dispatcher's own channel. The
// only error returned is a recovered handler panic.
func (d *Dispatcher) HandleMessage(msg *message.Message) ([]*message.Message, error) {
	channel := msg.Metadata.Get(metadatapkg.KeyChannel)
	if channel == "" {
		channel = d.channel
	}
	_, err := d.dispatch(DispatchInfo{
		Channel:     channel,
		MessageUUID: msg.UUID,
		Context:     msg.Context(),
	}, string(msg.Payload))
	return nil, err
}

func (d *Dispatcher) dispatch(info DispatchInfo, wire string) (outcome Outcome, err error) {
	if info.Context == nil {
		info.Context = context.Background()
	}
	info.StartedAt = d.now()
	d.hooks.start(info)
	defer func() {
		info.Outcome = outcome
		info.Duration = d.now().Sub(info.StartedAt)
		d.hooks.finish(info)
	}()

	if info.Channel != d.channel {
		return OutcomeDroppedChannel, nil
	}

	typeID, body, decodeErr := envelope.Decode(wire)
	if decodeErr != nil {
		return OutcomeDroppedMalformed, nil
	}
	info.TypeID = typeID

	decode, ok := d.registry.Resolve(typeID)
	if !ok {
		return OutcomeDroppedUnknownType, nil
	}

	p, decodeErr := decode(body)
	if decodeErr != nil {
		return OutcomeDroppedUndecodable, nil
	}
	info.Origin = p.Origin()

	if !p.SendToSelf() && p.Origin() == d.unit {
		return OutcomeDroppedSelf, nil
	}

	if carrier, isFeedback := p.(feedback.Carrier); isFeedback && carrier.FeedbackState() == feedback.StateResponse {
		// Responses nobody waits for, and repeats, fall through to the
		// registered handler.
		if d.engine != nil && d.engine.Record(carrier.FeedbackID(), carrier.Origin(), carrier) {
			return OutcomeFeedbackRecorded, nil
		}
	}

	return d.invoke(info, p)
}

func (d *Dispatcher) invoke(info DispatchInfo, p payload.Payload) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", info.TypeID, r)
			d.hooks.panicked(info, err)
			outcome = OutcomeHandlerPanicked
		}
	}()

	if d.registry.Dispatch(info.Context, p) {
		return OutcomeDispatched, nil
	}
	return OutcomeUnhandled, nil
}
