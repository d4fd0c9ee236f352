// internal/messaging/envelope.go
package messaging

import "encoding/json"

// Wire channels. Channel 0 carries events and requests, channel 1 carries
// acknowledgement replies correlated by id.
const (
	channelEvent = 0
	channelAck   = 1
)

// envelope is the single wire message shape, both directions. Payload and ID
// are kept raw on the way in so a request id is echoed back byte-identical
// regardless of its JSON type.
type envelope struct {
	Channel int             `json:"ch"`
	Event   string          `json:"ev,omitempty"`
	Payload json.RawMessage `json:"p,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Err     *WireError      `json:"e,omitempty"`
}

// outEnvelope is the outbound counterpart; Payload is marshaled in place.
type outEnvelope struct {
	Channel int         `json:"ch"`
	Event   string      `json:"ev,omitempty"`
	Payload interface{} `json:"p,omitempty"`
	ID      interface{} `json:"id,omitempty"`
	Err     *WireError  `json:"e,omitempty"`
}

// WireError is the structured error carried in the envelope "e" field.
// At minimum the human-readable message survives transport; named fields
// ride along when the originating error provides them.
type WireError struct {
	Name    string            `json:"name,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *WireError) Error() string { return e.Message }

// NewWireError builds a WireError with optional named fields given as
// alternating key, value pairs.
func NewWireError(message string, kv ...string) *WireError {
	we := &WireError{Message: message}
	for i := 0; i+1 < len(kv); i += 2 {
		if we.Fields == nil {
			we.Fields = make(map[string]string)
		}
		we.Fields[kv[i]] = kv[i+1]
	}
	return we
}

// serializeError converts any error into the wire shape, passing WireErrors
// through untouched.
func serializeError(err error) *WireError {
	if err == nil {
		return nil
	}
	if we, ok := err.(*WireError); ok {
		return we
	}
	return &WireError{Message: err.Error()}
}
