package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/unitcast/internal/runtime/logging"
)

// ConnectionEventKind names a change in the subscription state.
type ConnectionEventKind string

const (
	EventSubscribed       ConnectionEventKind = "subscribed"
	EventSubscriptionLost ConnectionEventKind = "subscription_lost"
	EventReconnectFailed  ConnectionEventKind = "reconnect_failed"
)

// ConnectionEvent is emitted by the resilience loop.
type ConnectionEvent struct {
	Kind    ConnectionEventKind
	Unit    string
	Channel string
	// Err is set for EventReconnectFailed.
	Err error
	At  time.Time
}

const connectionEventBuffer = 64

// supervise keeps the unit subscribed until ctx ends. Every time the
// subscription ends or cannot be established the transport is discarded and
// rebuilt after the retry delay.
func (n *Network) supervise(ctx context.Context) {
	defer close(n.loopDone)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := n.subscribeAndConsume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.Error("Subscription failed, retrying", err, loggingpkg.LogFields{
				"channel":     n.channel,
				"retry_delay": n.conf.RetryDelay.String(),
			})
			n.emit(EventReconnectFailed, err)
		} else {
			if ctx.Err() != nil {
				return
			}
			n.logger.Info("Subscription lost, reconnecting", loggingpkg.LogFields{
				"channel":     n.channel,
				"retry_delay": n.conf.RetryDelay.String(),
			})
			n.emit(EventSubscriptionLost, nil)
		}

		if err := n.dropTransport(); err != nil {
			n.logger.Debug("Closing dropped transport failed", loggingpkg.LogFields{"error": err.Error()})
		}

		if !sleepContext(ctx, n.conf.RetryDelay) {
			return
		}
	}
}

// subscribeAndConsume returns nil once an established subscription ended, or
// the error that kept it from being established.
func (n *Network) subscribeAndConsume(ctx context.Context) error {
	sub, err := n.ensureTransport(ctx)
	if err != nil {
		return err
	}
	messages, err := sub.Subscribe(ctx, n.channel)
	if err != nil {
		return err
	}

	n.logger.Info("Subscribed", loggingpkg.LogFields{
		"channel":   n.channel,
		"unit":      n.unit,
		"transport": n.conf.PubSubSystem,
	})
	n.emit(EventSubscribed, nil)
	n.subscribed.Store(true)
	defer n.subscribed.Store(false)

	n.consume(ctx, messages)
	return nil
}

// consume handles messages one at a time in arrival order.
func (n *Network) consume(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			msg.SetContext(ctx)
			if _, err := n.handler(msg); err != nil {
				n.logger.Error("Dispatch failed", err, loggingpkg.LogFields{
					"channel":      n.channel,
					"message_uuid": msg.UUID,
				})
			}
			// Broadcast delivery is at most once; a failed handler is not
			// redelivered.
			msg.Ack()
		}
	}
}

func (n *Network) emit(kind ConnectionEventKind, err error) {
	n.metrics.ObserveConnection(n.unit, kind)
	event := ConnectionEvent{
		Kind:    kind,
		Unit:    n.unit,
		Channel: n.channel,
		Err:     err,
		At:      time.Now(),
	}
	select {
	case n.events <- event:
	default:
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
