package ocppj

import (
	"encoding/json"
	"strings"
)

// Subprotocol is the OCPP-J version string negotiated during the
// WebSocket handshake.
type Subprotocol string

const (
	Subprotocol16  Subprotocol = "ocpp1.6"
	Subprotocol20  Subprotocol = "ocpp2.0"
	Subprotocol201 Subprotocol = "ocpp2.0.1"
)

// Ranking lists the supported subprotocols from highest to lowest; the
// highest version present in a client's offer wins negotiation.
var Ranking = []Subprotocol{Subprotocol201, Subprotocol20, Subprotocol16}

// Version strips the "ocpp" prefix, e.g. "ocpp2.0.1" -> "2.0.1".
func (s Subprotocol) Version() string {
	return strings.TrimPrefix(string(s), "ocpp")
}

// MessageType is the integer tag carried as the first element of every
// OCPP-J wire array.
type MessageType int

const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

// Call represents an OCPP-J request: [2, "<unique_id>", "<Action>", {payload}].
// Payload holds the raw wire payload (lowerCamelCase keys).
type Call struct {
	UniqueID string
	Action   string
	Payload  json.RawMessage
}

// CallResult represents a successful reply: [3, "<unique_id>", {payload}].
// Action is never on the wire; the correlation layer tags it from the
// originating Call so the response payload can be validated and decoded.
type CallResult struct {
	UniqueID string
	Action   string
	Payload  json.RawMessage
}

// CallError represents a failed reply:
// [4, "<unique_id>", "<ErrorCode>", "<Description>", {details}].
type CallError struct {
	UniqueID    string
	Code        ErrorCode
	Description string
	Details     map[string]interface{}
}

func emptyObject(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return json.RawMessage("{}")
	}
	return payload
}
