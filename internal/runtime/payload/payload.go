// Package payload defines the contract every broadcast payload satisfies and
// the per-network registry that maps wire type identifiers to Go types and
// handlers.
package payload

// Payload is a value that can be broadcast over a network.
type Payload interface {
	// Origin returns the unit that sent the payload. It is stamped by the
	// sender during encoding.
	Origin() string
	SetOrigin(unit string)
	// SendToSelf reports whether the sending unit should receive its own
	// broadcast.
	SendToSelf() bool
}

// Identified lets a payload name its own wire type identifier. It is consulted
// only when the payload's Go type was never registered.
type Identified interface {
	PayloadType() string
}

// Base carries the origin property. Embed it in application payloads:
//
//	type Ping struct {
//		payload.Base
//		Text string `json:"text"`
//	}
//
// Types that want to receive their own broadcasts override SendToSelf.
type Base struct {
	OriginUnit string `json:"origin"`
}

func (b *Base) Origin() string { return b.OriginUnit }

func (b *Base) SetOrigin(unit string) { b.OriginUnit = unit }

func (b *Base) SendToSelf() bool { return false }
