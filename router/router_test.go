package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/adapter/v201"
	"github.com/voltgrid/ocppj/schema"
)

// capture records every frame the router hands to the transport.
type capture struct {
	mu     sync.Mutex
	frames []*ocppj.Message
	send   SendFunc
}

func newCapture(t *testing.T) *capture {
	t.Helper()
	c := &capture{}
	c.send = func(ctx context.Context, message []byte, isResponse bool) error {
		msg, err := ocppj.Decode(message)
		if err != nil {
			t.Fatalf("router sent an unparseable frame: %v", err)
		}
		c.mu.Lock()
		c.frames = append(c.frames, msg)
		c.mu.Unlock()
		return nil
	}
	return c
}

func (c *capture) last(t *testing.T) *ocppj.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		t.Fatal("router sent nothing")
	}
	return c.frames[len(c.frames)-1]
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newSession(send SendFunc) *Context {
	return NewContext(context.Background(), "CS-1", ocppj.Subprotocol201, v201.Adapter(), nil, send)
}

func TestRouteMessageCall(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	r := New(ocppj.Subprotocol201)
	r.On(v201.ActionBootNotification, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		request := payload.(*v201.BootNotificationRequest)
		assert.Equal(t, "X", request.ChargingStation.Model)
		assert.Equal(t, "Y", request.ChargingStation.VendorName)
		assert.Equal(t, "CS-1", c.ChargingStationID)
		return &v201.BootNotificationResponse{
			CurrentTime: "2024-01-01T00:00:00Z",
			Interval:    10,
			Status:      v201.RegistrationStatusAccepted,
		}, nil
	})

	frame := `[2, "u1", "BootNotification", {"chargingStation": {"model": "X", "vendorName": "Y"}, "reason": "PowerUp"}]`
	r.RouteMessage(context.Background(), []byte(frame), session)

	reply := sink.last(t)
	assert.Equal(t, ocppj.MessageTypeCallResult, reply.Type)
	assert.Equal(t, "u1", reply.UniqueID())
	assert.JSONEq(t, `{"currentTime": "2024-01-01T00:00:00Z", "interval": 10, "status": "Accepted"}`, string(reply.CallResult.Payload))
}

func TestRouteMessageNoHandler(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	r := New(ocppj.Subprotocol201)

	r.RouteMessage(context.Background(), []byte(`[2, "u2", "Reset", {}]`), session)

	reply := sink.last(t)
	assert.Equal(t, ocppj.MessageTypeCallError, reply.Type)
	assert.Equal(t, "u2", reply.UniqueID())
	assert.Equal(t, ocppj.CodeNotImplemented, reply.CallError.Code)
}

func TestRouteMessageMalformed(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	r := New(ocppj.Subprotocol201)
	r.On(v201.ActionHeartbeat, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		return &v201.HeartbeatResponse{CurrentTime: "2024-01-01T00:00:00Z"}, nil
	})

	// malformed frames are dropped, never answered
	r.RouteMessage(context.Background(), []byte(`not even json`), session)
	r.RouteMessage(context.Background(), []byte(`[2, "u3", "Heartbeat"]`), session)
	assert.Equal(t, 0, sink.count())
}

func TestRouteMessageHandlerFailure(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	r := New(ocppj.Subprotocol201)
	r.On(v201.ActionHeartbeat, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		return nil, fmt.Errorf("database down")
	})
	r.On(v201.ActionAuthorize, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		return nil, ocppj.NewSecurityError("certificate expired")
	})

	r.RouteMessage(context.Background(), []byte(`[2, "u4", "Heartbeat", {}]`), session)
	reply := sink.last(t)
	assert.Equal(t, ocppj.MessageTypeCallError, reply.Type)
	assert.Equal(t, ocppj.CodeInternalError, reply.CallError.Code)

	r.RouteMessage(context.Background(), []byte(`[2, "u5", "Authorize", {"idToken": {"idToken": "A", "type": "Central"}}]`), session)
	reply = sink.last(t)
	assert.Equal(t, ocppj.CodeSecurityError, reply.CallError.Code)
}

func TestRouteMessageUnknownReply(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	r := New(ocppj.Subprotocol201)

	// a reply nobody is waiting for is dropped
	r.RouteMessage(context.Background(), []byte(`[3, "ghost", {}]`), session)
	r.RouteMessage(context.Background(), []byte(`[4, "ghost", "InternalError", "late", {}]`), session)
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 0, r.PendingCalls())
}

type fakeValidator struct {
	requestErr  error
	responseErr error
}

func (v *fakeValidator) Validate(version, action string, direction schema.Direction, payload []byte) error {
	if direction == schema.Request {
		return v.requestErr
	}
	return v.responseErr
}

func TestRouteMessageRequestValidation(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	invoked := false
	r := New(ocppj.Subprotocol201, WithValidator(&fakeValidator{
		requestErr: ocppj.NewError(ocppj.CodePropertyConstraintViolation, "model too long"),
	}))
	r.On(v201.ActionHeartbeat, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		invoked = true
		return &v201.HeartbeatResponse{CurrentTime: "2024-01-01T00:00:00Z"}, nil
	})

	r.RouteMessage(context.Background(), []byte(`[2, "u6", "Heartbeat", {}]`), session)

	reply := sink.last(t)
	assert.Equal(t, ocppj.MessageTypeCallError, reply.Type)
	assert.Equal(t, ocppj.CodePropertyConstraintViolation, reply.CallError.Code)
	assert.False(t, invoked, "handler must not run on an invalid request")
}

func TestRouteMessageResponseValidation(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	r := New(ocppj.Subprotocol201, WithValidator(&fakeValidator{
		responseErr: ocppj.NewFormationViolation("bad response"),
	}))
	r.On(v201.ActionHeartbeat, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		return &v201.HeartbeatResponse{CurrentTime: "2024-01-01T00:00:00Z"}, nil
	})

	r.RouteMessage(context.Background(), []byte(`[2, "u7", "Heartbeat", {}]`), session)

	// the handler result never reaches the wire; the station still gets a reply
	reply := sink.last(t)
	assert.Equal(t, ocppj.MessageTypeCallError, reply.Type)
	assert.Equal(t, ocppj.CodeInternalError, reply.CallError.Code)
}

func TestRouteMessageWithoutValidation(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	r := New(ocppj.Subprotocol201, WithValidator(&fakeValidator{
		requestErr: ocppj.NewFormationViolation("should not be consulted"),
	}))
	r.On(v201.ActionHeartbeat, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		return &v201.HeartbeatResponse{CurrentTime: "2024-01-01T00:00:00Z"}, nil
	}, WithoutValidation())

	r.RouteMessage(context.Background(), []byte(`[2, "u8", "Heartbeat", {}]`), session)
	assert.Equal(t, ocppj.MessageTypeCallResult, sink.last(t).Type)
}

func TestCall(t *testing.T) {
	r := New(ocppj.Subprotocol201, WithUniqueIDGenerator(func() string { return "fixed" }))
	// the transport answers the outbound call synchronously
	var session *Context
	session = newSession(func(ctx context.Context, message []byte, isResponse bool) error {
		msg, err := ocppj.Decode(message)
		assert.NoError(t, err)
		assert.Equal(t, ocppj.MessageTypeCall, msg.Type)
		assert.Equal(t, "GetLocalListVersion", msg.Call.Action)
		reply := `[3, "fixed", {"versionNumber": 7}]`
		r.RouteMessage(ctx, []byte(reply), session)
		return nil
	})

	response, err := r.Call(context.Background(), &v201.GetLocalListVersionRequest{}, session)
	assert.NoError(t, err)
	version := response.(*v201.GetLocalListVersionResponse)
	assert.Equal(t, 7, version.VersionNumber)
	assert.Equal(t, 0, r.PendingCalls())
}

func TestCallErrorReply(t *testing.T) {
	r := New(ocppj.Subprotocol201, WithUniqueIDGenerator(func() string { return "fixed" }))
	var session *Context
	session = newSession(func(ctx context.Context, message []byte, isResponse bool) error {
		reply := `[4, "fixed", "NotSupported", "local list disabled", {}]`
		r.RouteMessage(ctx, []byte(reply), session)
		return nil
	})

	_, err := r.Call(context.Background(), &v201.GetLocalListVersionRequest{}, session)
	var protocolErr *ocppj.Error
	assert.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, ocppj.CodeNotSupported, protocolErr.Code)
	assert.Equal(t, 0, r.PendingCalls())
}

func TestCallTimeout(t *testing.T) {
	r := New(ocppj.Subprotocol201, WithResponseTimeout(20*time.Millisecond),
		WithUniqueIDGenerator(func() string { return "slow" }))
	session := newSession(func(ctx context.Context, message []byte, isResponse bool) error {
		return nil // the station never answers
	})

	_, err := r.Call(context.Background(), &v201.GetLocalListVersionRequest{}, session)
	assert.ErrorIs(t, err, ocppj.ErrTimeout)
	assert.Equal(t, 0, r.PendingCalls())

	// a reply arriving after the timeout is dropped
	r.RouteMessage(context.Background(), []byte(`[3, "slow", {"versionNumber": 7}]`), session)
	assert.Equal(t, 0, r.PendingCalls())
}

func TestCallSessionClosed(t *testing.T) {
	r := New(ocppj.Subprotocol201)
	session := newSession(func(ctx context.Context, message []byte, isResponse bool) error {
		return nil
	})
	go func() {
		time.Sleep(10 * time.Millisecond)
		session.Close()
	}()

	_, err := r.Call(context.Background(), &v201.GetLocalListVersionRequest{}, session)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 0, r.PendingCalls())
}

func TestCallSendFailure(t *testing.T) {
	r := New(ocppj.Subprotocol201)
	session := newSession(func(ctx context.Context, message []byte, isResponse bool) error {
		return errors.New("socket gone")
	})

	_, err := r.Call(context.Background(), &v201.GetLocalListVersionRequest{}, session)
	assert.EqualError(t, err, "socket gone")
	assert.Equal(t, 0, r.PendingCalls())
}

func TestCallUnknownPayload(t *testing.T) {
	r := New(ocppj.Subprotocol201)
	session := newSession(func(ctx context.Context, message []byte, isResponse bool) error {
		return nil
	})

	type offVocabulary struct{}
	_, err := r.Call(context.Background(), &offVocabulary{}, session)
	var protocolErr *ocppj.Error
	assert.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, ocppj.CodeGenericError, protocolErr.Code)
}

func TestAfterHandlerCallsBack(t *testing.T) {
	r := New(ocppj.Subprotocol201, WithUniqueIDGenerator(func() string { return "list" }))
	versions := make(chan int, 1)

	var session *Context
	session = newSession(func(ctx context.Context, message []byte, isResponse bool) error {
		msg, err := ocppj.Decode(message)
		assert.NoError(t, err)
		if msg.Type != ocppj.MessageTypeCall {
			return nil
		}
		// answer the server-originated call the after-handler sent
		assert.False(t, isResponse)
		go r.RouteMessage(ctx, []byte(`[3, "list", {"versionNumber": 3}]`), session)
		return nil
	})

	r.On(v201.ActionBootNotification, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		return &v201.BootNotificationResponse{
			CurrentTime: "2024-01-01T00:00:00Z",
			Interval:    10,
			Status:      v201.RegistrationStatusAccepted,
		}, nil
	})
	r.After(v201.ActionBootNotification, func(ctx context.Context, c *HandlerContext, payload interface{}) error {
		response, err := c.Send(ctx, &v201.GetLocalListVersionRequest{})
		if err != nil {
			return err
		}
		versions <- response.(*v201.GetLocalListVersionResponse).VersionNumber
		return nil
	})

	frame := `[2, "boot", "BootNotification", {"chargingStation": {"model": "X", "vendorName": "Y"}, "reason": "PowerUp"}]`
	r.RouteMessage(context.Background(), []byte(frame), session)

	select {
	case version := <-versions:
		assert.Equal(t, 3, version)
	case <-time.After(time.Second):
		t.Fatal("after-handler never completed its call")
	}
}

func TestInlineAfter(t *testing.T) {
	sink := newCapture(t)
	session := newSession(sink.send)
	ran := false
	r := New(ocppj.Subprotocol201, WithInlineAfter())
	r.On(v201.ActionHeartbeat, func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error) {
		return &v201.HeartbeatResponse{CurrentTime: "2024-01-01T00:00:00Z"}, nil
	})
	r.After(v201.ActionHeartbeat, func(ctx context.Context, c *HandlerContext, payload interface{}) error {
		ran = true
		return nil
	})

	r.RouteMessage(context.Background(), []byte(`[2, "u9", "Heartbeat", {}]`), session)
	assert.True(t, ran, "inline after-handler runs before RouteMessage returns")
	assert.Equal(t, ocppj.MessageTypeCallResult, sink.frames[0].Type)
}
