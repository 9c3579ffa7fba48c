// Package metadata describes the transport headers attached to broadcast
// messages. Headers are informational: receivers never trust them over the
// envelope body.
package metadata

// Well-known header keys set by the publisher.
const (
	KeyOrigin      = "unitcast_origin"
	KeyPayloadType = "unitcast_payload_type"
	KeyChannel     = "unitcast_channel"
	KeyFeedbackID  = "unitcast_feedback_id"
)

// Metadata represents the headers carried alongside a broadcast.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	cloned := make(Metadata, len(m)+extra)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
// Empty values are skipped.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	if value != "" {
		cloned[key] = value
	}
	return cloned
}

// Get returns the value for key, or "" when absent.
func (m Metadata) Get(key string) string {
	return m[key]
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
