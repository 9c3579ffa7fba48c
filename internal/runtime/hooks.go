package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/drblury/unitcast/internal/runtime/logging"
)

// DispatchInfo describes one inbound message as it passes the dispatcher.
type DispatchInfo struct {
	// Channel is the channel the message arrived on.
	Channel string
	// MessageUUID is the transport message id, empty when Dispatch is called
	// with a bare wire string.
	MessageUUID string
	// TypeID is the payload type identifier from the envelope. It is empty
	// for messages dropped before the envelope was parsed.
	TypeID string
	// Origin is the sending unit, known once the payload was decoded.
	Origin string
	// Outcome is set for OnDispatchDone and OnDispatchDrop.
	Outcome Outcome
	// Context is the context the handler runs with.
	Context context.Context
	// StartedAt is when dispatch began.
	StartedAt time.Time
	// Duration is how long dispatch took. Zero in OnDispatchStart.
	Duration time.Duration
}

// DispatchHooks are callbacks around each dispatched message.
// All hooks are optional.
type DispatchHooks struct {
	// OnDispatchStart runs before the envelope is decoded.
	OnDispatchStart func(info DispatchInfo)

	// OnDispatchDone runs when the message was consumed: a handler ran, a
	// feedback response was recorded, or the type has no handler.
	OnDispatchDone func(info DispatchInfo)

	// OnDispatchDrop runs when the message was discarded on purpose.
	OnDispatchDrop func(info DispatchInfo)

	// OnHandlerPanic runs when an application handler panicked. The panic
	// value is reported as err.
	OnHandlerPanic func(info DispatchInfo, err error)
}

// Merge combines two hook sets. Hooks from other run after those of h.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnDispatchStart: chainInfoHooks(h.OnDispatchStart, other.OnDispatchStart),
		OnDispatchDone:  chainInfoHooks(h.OnDispatchDone, other.OnDispatchDone),
		OnDispatchDrop:  chainInfoHooks(h.OnDispatchDrop, other.OnDispatchDrop),
		OnHandlerPanic:  chainPanicHooks(h.OnHandlerPanic, other.OnHandlerPanic),
	}
}

func chainInfoHooks(a, b func(DispatchInfo)) func(DispatchInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info DispatchInfo) {
		a(info)
		b(info)
	}
}

func chainPanicHooks(a, b func(DispatchInfo, error)) func(DispatchInfo, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info DispatchInfo, err error) {
		a(info, err)
		b(info, err)
	}
}

func (h DispatchHooks) start(info DispatchInfo) {
	if h.OnDispatchStart != nil {
		h.OnDispatchStart(info)
	}
}

func (h DispatchHooks) finish(info DispatchInfo) {
	if info.Outcome.Dropped() {
		if h.OnDispatchDrop != nil {
			h.OnDispatchDrop(info)
		}
		return
	}
	if h.OnDispatchDone != nil {
		h.OnDispatchDone(info)
	}
}

func (h DispatchHooks) panicked(info DispatchInfo, err error) {
	if h.OnHandlerPanic != nil {
		h.OnHandlerPanic(info, err)
	}
}

// LoggingHooks logs dispatch activity. Drops are logged at trace level since
// units of different versions routinely exchange types the other side does
// not know.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	if logger == nil {
		return DispatchHooks{}
	}
	return DispatchHooks{
		OnDispatchDone: func(info DispatchInfo) {
			logger.Debug("Message dispatched", loggingpkg.LogFields{
				"channel":      info.Channel,
				"message_uuid": info.MessageUUID,
				"payload_type": info.TypeID,
				"origin":       info.Origin,
				"outcome":      string(info.Outcome),
				"duration_ms":  info.Duration.Milliseconds(),
			})
		},
		OnDispatchDrop: func(info DispatchInfo) {
			logger.Trace("Message dropped", loggingpkg.LogFields{
				"channel":      info.Channel,
				"message_uuid": info.MessageUUID,
				"payload_type": info.TypeID,
				"origin":       info.Origin,
				"outcome":      string(info.Outcome),
			})
		},
		OnHandlerPanic: func(info DispatchInfo, err error) {
			logger.Error("Payload handler panicked", err, loggingpkg.LogFields{
				"channel":      info.Channel,
				"message_uuid": info.MessageUUID,
				"payload_type": info.TypeID,
				"origin":       info.Origin,
			})
		},
	}
}

// MetricsHooks feeds dispatch outcomes into m.
func MetricsHooks(m *Metrics) DispatchHooks {
	if m == nil {
		return DispatchHooks{}
	}
	observe := func(info DispatchInfo) {
		m.ObserveDispatch(info.TypeID, info.Outcome, info.Duration)
	}
	return DispatchHooks{
		OnDispatchDone: observe,
		OnDispatchDrop: observe,
	}
}

// AlertingHooks returns hooks that call alertFunc when a handler panics.
func AlertingHooks(alertFunc func(info DispatchInfo, err error)) DispatchHooks {
	return DispatchHooks{
		OnHandlerPanic: alertFunc,
	}
}
