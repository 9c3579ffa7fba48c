package payload

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/drblury/unitcast/internal/runtime/envelope"
)

// ErrInvalidTypeIdentifier is returned when a type identifier is empty or
// contains the envelope delimiter.
var ErrInvalidTypeIdentifier = envelope.ErrInvalidTypeID

// ErrNilRegistry is returned when registering against a nil registry.
var ErrNilRegistry = errors.New("unitcast: payload registry is nil")

// Handler processes a decoded payload of a concrete type.
type Handler[P Payload] func(ctx context.Context, p P)

// PayloadPointer constrains P to be a pointer to T that implements Payload.
type PayloadPointer[T any] interface {
	*T
	Payload
}

// Decoder builds a fresh payload from a JSON body.
type Decoder func(body string) (Payload, error)

type entry struct {
	typeID  string
	goType  reflect.Type
	decode  Decoder
	handler func(context.Context, Payload)
}

// Registry maps type identifiers to decoders and handlers. The zero value is
// not usable; create one with NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*entry
	byType map[reflect.Type]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*entry),
		byType: make(map[reflect.Type]string),
	}
}

// Register binds typeID to P and its handler. Registering an identifier again
// replaces the previous binding.
func Register[T any, P PayloadPointer[T]](r *Registry, typeID string, handler Handler[P]) error {
	var wrapped func(context.Context, Payload)
	if handler != nil {
		wrapped = func(ctx context.Context, p Payload) {
			typed, ok := p.(P)
			if !ok {
				return
			}
			handler(ctx, typed)
		}
	}
	return register[T, P](r, typeID, wrapped)
}

// RegisterType binds typeID to P without a handler, so the payload can be
// broadcast and decoded but is ignored on dispatch.
func RegisterType[T any, P PayloadPointer[T]](r *Registry, typeID string) error {
	return register[T, P](r, typeID, nil)
}

func register[T any, P PayloadPointer[T]](r *Registry, typeID string, handler func(context.Context, Payload)) error {
	if r == nil {
		return ErrNilRegistry
	}
	if err := envelope.ValidateTypeID(typeID); err != nil {
		return err
	}

	e := &entry{
		typeID: typeID,
		goType: reflect.TypeFor[P](),
		decode: func(body string) (Payload, error) {
			p := P(new(T))
			if err := envelope.Unmarshal(body, p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", typeID, err)
			}
			return p, nil
		},
		handler: handler,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byID[typeID]; ok && r.byType[prev.goType] == typeID {
		delete(r.byType, prev.goType)
	}
	r.byID[typeID] = e
	r.byType[e.goType] = typeID
	return nil
}

// Resolve returns the decoder for typeID.
func (r *Registry) Resolve(typeID string) (Decoder, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[typeID]
	if !ok {
		return nil, false
	}
	return e.decode, true
}

// IdentifierFor returns the wire identifier for p.
func (r *Registry) IdentifierFor(p Payload) (string, bool) {
	if r == nil || p == nil {
		return "", false
	}
	r.mu.RLock()
	id, ok := r.byType[reflect.TypeOf(p)]
	if ok {
		_, ok = r.byID[id]
	}
	r.mu.RUnlock()
	if ok {
		return id, true
	}
	if named, isNamed := p.(Identified); isNamed {
		if id := named.PayloadType(); envelope.ValidateTypeID(id) == nil {
			return id, true
		}
	}
	return "", false
}

// HasHandler reports whether a handler is bound to typeID.
func (r *Registry) HasHandler(typeID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[typeID]
	return ok && e.handler != nil
}

// Dispatch invokes the handler registered for p's Go type. It reports whether
// a handler ran.
func (r *Registry) Dispatch(ctx context.Context, p Payload) bool {
	if r == nil || p == nil {
		return false
	}
	r.mu.RLock()
	var handler func(context.Context, Payload)
	if id, ok := r.byType[reflect.TypeOf(p)]; ok {
		if e, ok := r.byID[id]; ok {
			handler = e.handler
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return false
	}
	handler(ctx, p)
	return true
}

// Types lists the registered identifiers in lexical order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
