package ocppj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expectType  MessageType
		expectErr   bool
	}{
		{
			description: "call",
			input:       `[2, "19223201", "BootNotification", {"chargingStation": {"model": "X", "vendorName": "Y"}, "reason": "PowerUp"}]`,
			expectType:  MessageTypeCall,
		},
		{
			description: "call result",
			input:       `[3, "19223201", {"currentTime": "2024-01-01T00:00:00Z", "interval": 300, "status": "Accepted"}]`,
			expectType:  MessageTypeCallResult,
		},
		{
			description: "call error",
			input:       `[4, "19223201", "NotImplemented", "no handler", {}]`,
			expectType:  MessageTypeCallError,
		},
		{
			description: "not json",
			input:       `hello`,
			expectErr:   true,
		},
		{
			description: "not an array",
			input:       `{"messageTypeId": 2}`,
			expectErr:   true,
		},
		{
			description: "unknown type id",
			input:       `[9, "19223201", {}]`,
			expectErr:   true,
		},
		{
			description: "call with wrong arity",
			input:       `[2, "19223201", "Heartbeat"]`,
			expectErr:   true,
		},
		{
			description: "call result with wrong arity",
			input:       `[3, "19223201", "Heartbeat", {}]`,
			expectErr:   true,
		},
		{
			description: "empty unique id",
			input:       `[2, "", "Heartbeat", {}]`,
			expectErr:   true,
		},
		{
			description: "non string action",
			input:       `[2, "19223201", 42, {}]`,
			expectErr:   true,
		},
	}

	for _, testCase := range testCases {
		msg, err := Decode([]byte(testCase.input))
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			assert.Equal(t, CodeProtocolError, CodeOf(err), testCase.description)
			continue
		}
		if !assert.NoError(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expectType, msg.Type, testCase.description)
		assert.Equal(t, "19223201", msg.UniqueID(), testCase.description)
	}
}

func TestDecodeCall(t *testing.T) {
	msg, err := Decode([]byte(`[2, "abc", "Heartbeat", {}]`))
	assert.NoError(t, err)
	assert.Equal(t, "Heartbeat", msg.Action())
	assert.Equal(t, "abc", msg.Call.UniqueID)
	assert.JSONEq(t, `{}`, string(msg.Call.Payload))
}

func TestDecodeCallError(t *testing.T) {
	msg, err := Decode([]byte(`[4, "abc", "InternalError", "boom", {"hint": "retry"}]`))
	assert.NoError(t, err)
	assert.Equal(t, CodeInternalError, msg.CallError.Code)
	assert.Equal(t, "boom", msg.CallError.Description)
	assert.Equal(t, map[string]interface{}{"hint": "retry"}, msg.CallError.Details)
}

func TestEncode(t *testing.T) {
	testCases := []struct {
		description string
		message     *Message
		expect      string
	}{
		{
			description: "call",
			message:     NewCallMessage(&Call{UniqueID: "1", Action: "Heartbeat", Payload: []byte(`{}`)}),
			expect:      `[2,"1","Heartbeat",{}]`,
		},
		{
			description: "call with nil payload",
			message:     NewCallMessage(&Call{UniqueID: "1", Action: "Heartbeat"}),
			expect:      `[2,"1","Heartbeat",{}]`,
		},
		{
			description: "call result",
			message:     NewCallResultMessage(&CallResult{UniqueID: "1", Payload: []byte(`{"interval":300}`)}),
			expect:      `[3,"1",{"interval":300}]`,
		},
		{
			description: "call error with nil details",
			message:     NewCallErrorMessage(&CallError{UniqueID: "1", Code: CodeNotImplemented, Description: "no handler"}),
			expect:      `[4,"1","NotImplemented","no handler",{}]`,
		},
	}

	for _, testCase := range testCases {
		data, err := testCase.message.Encode()
		if !assert.NoError(t, err, testCase.description) {
			continue
		}
		assert.JSONEq(t, testCase.expect, string(data), testCase.description)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := NewCallMessage(&Call{UniqueID: "42", Action: "StatusNotification", Payload: []byte(`{"evseId":1}`)})
	data, err := original.Encode()
	assert.NoError(t, err)
	decoded, err := Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, original.Call.UniqueID, decoded.Call.UniqueID)
	assert.Equal(t, original.Call.Action, decoded.Call.Action)
	assert.JSONEq(t, string(original.Call.Payload), string(decoded.Call.Payload))
}
