// Package envelope converts payloads to and from the single-string wire form
// shared by every unit on a network:
//
//	<payload type identifier>&<JSON object with an "origin" property>
//
// Only the first delimiter separates the identifier from the body, so the body
// may contain further '&' characters. Type identifiers must not contain the
// delimiter.
package envelope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"

	jsoncodec "github.com/drblury/unitcast/internal/runtime/jsoncodec"
)

// Delimiter separates the type identifier from the JSON body.
const Delimiter = "&"

// OriginKey is the JSON property that carries the sending unit.
const OriginKey = "origin"

var (
	ErrMalformedEnvelope = errors.New("unitcast: malformed envelope")
	ErrInvalidTypeID     = errors.New("unitcast: invalid payload type identifier")
	ErrNotAnObject       = errors.New("unitcast: payload must encode to a JSON object")
)

// ValidateTypeID reports whether id can be used as a payload type identifier.
func ValidateTypeID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTypeID)
	}
	if strings.Contains(id, Delimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidTypeID, id, Delimiter)
	}
	return nil
}

// Encode serializes v and stamps origin into its top-level "origin" property,
// replacing whatever value v carried.
func Encode(typeID string, v any, origin string) (string, error) {
	if err := ValidateTypeID(typeID); err != nil {
		return "", err
	}

	raw, err := jsoncodec.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload %s: %w", typeID, err)
	}

	body, err := withOrigin(raw, origin)
	if err != nil {
		return "", fmt.Errorf("encode payload %s: %w", typeID, err)
	}

	return typeID + Delimiter + body, nil
}

func withOrigin(raw []byte, origin string) (string, error) {
	root, err := sonic.Get(raw)
	if err != nil {
		return "", err
	}
	if root.Type() != ast.V_OBJECT {
		return "", ErrNotAnObject
	}
	if _, err := root.Set(OriginKey, ast.NewString(origin)); err != nil {
		return "", err
	}
	out, err := root.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decode splits a wire string into its type identifier and JSON body. The
// body is returned untouched; callers resolve the identifier before decoding
// it.
func Decode(wire string) (typeID, body string, err error) {
	typeID, body, ok := strings.Cut(wire, Delimiter)
	if !ok || typeID == "" {
		return "", "", ErrMalformedEnvelope
	}
	return typeID, body, nil
}

// Unmarshal decodes a body produced by Encode into target.
func Unmarshal(body string, target any) error {
	return jsoncodec.UnmarshalString(body, target)
}
