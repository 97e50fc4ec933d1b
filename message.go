package ocppj

import (
	"encoding/json"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Message is a tagged union over the three OCPP-J frame types. Exactly one
// of Call, CallResult, CallError is set, matching Type.
type Message struct {
	Type       MessageType
	Call       *Call
	CallResult *CallResult
	CallError  *CallError
}

// UniqueID returns the correlation id shared by all frame variants.
func (m *Message) UniqueID() string {
	switch m.Type {
	case MessageTypeCall:
		return m.Call.UniqueID
	case MessageTypeCallResult:
		return m.CallResult.UniqueID
	case MessageTypeCallError:
		return m.CallError.UniqueID
	}
	return ""
}

// Action returns the action name for Call frames, otherwise "".
func (m *Message) Action() string {
	if m.Type == MessageTypeCall {
		return m.Call.Action
	}
	return ""
}

// NewCallMessage wraps a Call into a Message.
func NewCallMessage(call *Call) *Message {
	return &Message{Type: MessageTypeCall, Call: call}
}

// NewCallResultMessage wraps a CallResult into a Message.
func NewCallResultMessage(result *CallResult) *Message {
	return &Message{Type: MessageTypeCallResult, CallResult: result}
}

// NewCallErrorMessage wraps a CallError into a Message.
func NewCallErrorMessage(callError *CallError) *Message {
	return &Message{Type: MessageTypeCallError, CallError: callError}
}

// Decode parses one OCPP-J text frame. The frame must be a JSON array of
// length 4 (Call), 3 (CallResult) or 5 (CallError) whose first element is
// the message-type tag. Malformed frames yield a ProtocolError; per the
// routing policy such frames are logged and dropped, never answered, since
// the unique id cannot be trusted.
func Decode(data []byte) (*Message, error) {
	var elements []gojson.RawMessage
	if err := gojson.Unmarshal(data, &elements); err != nil {
		return nil, NewProtocolError(fmt.Sprintf("message is not a JSON array: %v", err))
	}
	if len(elements) < 3 || len(elements) > 5 {
		return nil, NewProtocolError(fmt.Sprintf("message array has %d elements, expected 3..5", len(elements)))
	}
	var messageType MessageType
	if err := gojson.Unmarshal(elements[0], &messageType); err != nil {
		return nil, NewProtocolError("message type id is not an integer")
	}
	var uniqueID string
	if err := gojson.Unmarshal(elements[1], &uniqueID); err != nil || uniqueID == "" {
		return nil, NewProtocolError("unique id is not a non-empty string")
	}
	switch messageType {
	case MessageTypeCall:
		if len(elements) != 4 {
			return nil, NewProtocolError(fmt.Sprintf("Call has %d elements, expected 4", len(elements)))
		}
		var action string
		if err := gojson.Unmarshal(elements[2], &action); err != nil || action == "" {
			return nil, NewProtocolError("Call action is not a non-empty string")
		}
		return NewCallMessage(&Call{
			UniqueID: uniqueID,
			Action:   action,
			Payload:  json.RawMessage(elements[3]),
		}), nil
	case MessageTypeCallResult:
		if len(elements) != 3 {
			return nil, NewProtocolError(fmt.Sprintf("CallResult has %d elements, expected 3", len(elements)))
		}
		return NewCallResultMessage(&CallResult{
			UniqueID: uniqueID,
			Payload:  json.RawMessage(elements[2]),
		}), nil
	case MessageTypeCallError:
		if len(elements) != 5 {
			return nil, NewProtocolError(fmt.Sprintf("CallError has %d elements, expected 5", len(elements)))
		}
		var code ErrorCode
		var description string
		var details map[string]interface{}
		if err := gojson.Unmarshal(elements[2], &code); err != nil {
			return nil, NewProtocolError("CallError code is not a string")
		}
		if err := gojson.Unmarshal(elements[3], &description); err != nil {
			return nil, NewProtocolError("CallError description is not a string")
		}
		if err := gojson.Unmarshal(elements[4], &details); err != nil {
			return nil, NewProtocolError("CallError details is not an object")
		}
		return NewCallErrorMessage(&CallError{
			UniqueID:    uniqueID,
			Code:        code,
			Description: description,
			Details:     details,
		}), nil
	}
	return nil, NewProtocolError(fmt.Sprintf("unknown message type id %d", messageType))
}

// Encode serializes the frame back to its OCPP-J wire array. A nil payload
// is emitted as an empty object so optional omitted payloads never appear
// as null on the wire.
func (m *Message) Encode() ([]byte, error) {
	switch m.Type {
	case MessageTypeCall:
		return gojson.Marshal([]interface{}{
			MessageTypeCall, m.Call.UniqueID, m.Call.Action, emptyObject(m.Call.Payload),
		})
	case MessageTypeCallResult:
		return gojson.Marshal([]interface{}{
			MessageTypeCallResult, m.CallResult.UniqueID, emptyObject(m.CallResult.Payload),
		})
	case MessageTypeCallError:
		details := m.CallError.Details
		if details == nil {
			details = map[string]interface{}{}
		}
		return gojson.Marshal([]interface{}{
			MessageTypeCallError, m.CallError.UniqueID, m.CallError.Code, m.CallError.Description, details,
		})
	}
	return nil, fmt.Errorf("unknown message type, couldn't encode")
}
