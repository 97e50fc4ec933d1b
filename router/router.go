// Package router owns one subprotocol's action table and drives the
// OCPP-J message lifecycle: inbound Calls are dispatched to registered
// handlers, inbound CallResult/CallError frames wake the outbound caller
// they correlate with.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/schema"
)

// DefaultResponseTimeout bounds the wait for a reply to an outbound Call.
const DefaultResponseTimeout = 30 * time.Second

// ErrSessionClosed is returned by outbound calls whose session
// disconnected before the reply arrived.
var ErrSessionClosed = fmt.Errorf("session closed")

// Handler is the primary action handler. It receives the decoded,
// version-specific request payload and returns the response payload, or an
// error that is converted to a CallError reply.
type Handler func(ctx context.Context, c *HandlerContext, payload interface{}) (interface{}, error)

// AfterHandler runs after the response has been sent, with the same
// decoded request payload. Its error is logged and does not affect the
// already-sent response.
type AfterHandler func(ctx context.Context, c *HandlerContext, payload interface{}) error

// Validator checks wire payloads against the version's schema.
type Validator interface {
	Validate(version, action string, direction schema.Direction, payload []byte) error
}

type route struct {
	on             Handler
	after          AfterHandler
	skipValidation bool
}

// RouteOption configures a single action registration.
type RouteOption func(*route)

// WithoutValidation disables schema validation for the action's request
// and response payloads.
func WithoutValidation() RouteOption {
	return func(r *route) {
		r.skipValidation = true
	}
}

// Router is a collection of action handlers for one subprotocol.
type Router struct {
	subprotocol     ocppj.Subprotocol
	routes          map[string]*route
	validator       Validator
	responseTimeout time.Duration
	inlineAfter     bool
	logger          ocppj.Logger
	pending         *pendingCalls
	newUniqueID     func() string
}

// Option configures a Router.
type Option func(*Router)

// WithResponseTimeout overrides the reply wait bound for outbound Calls.
func WithResponseTimeout(timeout time.Duration) Option {
	return func(r *Router) {
		r.responseTimeout = timeout
	}
}

// WithInlineAfter runs after-hooks inline instead of detached. In that
// mode a hook must not originate a Call on its own session.
func WithInlineAfter() Option {
	return func(r *Router) {
		r.inlineAfter = true
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger ocppj.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithValidator installs the schema validator used for payload validation.
func WithValidator(validator Validator) Option {
	return func(r *Router) {
		r.validator = validator
	}
}

// WithUniqueIDGenerator overrides the outbound unique-id source. Meant for
// tests needing predictable ids.
func WithUniqueIDGenerator(generate func() string) Option {
	return func(r *Router) {
		r.newUniqueID = generate
	}
}

// New creates a Router for the given subprotocol.
func New(subprotocol ocppj.Subprotocol, options ...Option) *Router {
	ret := &Router{
		subprotocol:     subprotocol,
		routes:          map[string]*route{},
		responseTimeout: DefaultResponseTimeout,
		logger:          ocppj.DefaultLogger,
		pending:         newPendingCalls(),
		newUniqueID:     uuid.NewString,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Subprotocol returns the subprotocol this router serves.
func (r *Router) Subprotocol() ocppj.Subprotocol {
	return r.subprotocol
}

// On registers the primary handler for an action. Registration happens at
// configuration time; the route table is read-only afterwards.
func (r *Router) On(action string, handler Handler, options ...RouteOption) *Router {
	rt := r.route(action)
	rt.on = handler
	for _, option := range options {
		option(rt)
	}
	return r
}

// After registers the post-response hook for an action.
func (r *Router) After(action string, handler AfterHandler) *Router {
	r.route(action).after = handler
	return r
}

func (r *Router) route(action string) *route {
	rt, ok := r.routes[action]
	if !ok {
		rt = &route{}
		r.routes[action] = rt
	}
	return rt
}

// PendingCalls returns the number of outstanding outbound correlation
// entries.
func (r *Router) PendingCalls() int {
	return r.pending.size()
}

// RouteMessage processes one inbound frame from a charging station. Calls
// are dispatched to their handler; CallResult and CallError frames are
// handed to the correlation table. Frames that fail to decode are logged
// and dropped.
func (r *Router) RouteMessage(ctx context.Context, message []byte, session *Context) {
	msg, err := ocppj.Decode(message)
	if err != nil {
		r.logger.Errorf("unable to parse message %q, it doesn't seem to be valid OCPP: %v", message, err)
		return
	}
	switch msg.Type {
	case ocppj.MessageTypeCall:
		r.handleCall(ctx, msg.Call, session)
	case ocppj.MessageTypeCallResult, ocppj.MessageTypeCallError:
		if !r.pending.resolve(msg) {
			r.logger.Warnf("no pending call for unique id %q, dropping reply", msg.UniqueID())
		}
	}
}

func (r *Router) handleCall(ctx context.Context, call *ocppj.Call, session *Context) {
	rt, ok := r.routes[call.Action]
	if !ok || rt.on == nil {
		r.sendCallError(ctx, session, ocppj.CallErrorFrom(call, ocppj.NewNotImplemented(call.Action)))
		return
	}
	version := r.subprotocol.Version()
	if !rt.skipValidation && r.validator != nil {
		if err := r.validator.Validate(version, call.Action, schema.Request, call.Payload); err != nil {
			r.sendCallError(ctx, session, ocppj.CallErrorFrom(call, err))
			return
		}
	}
	payload, err := r.requestPayload(call, session)
	if err != nil {
		r.sendCallError(ctx, session, ocppj.CallErrorFrom(call, err))
		return
	}
	handlerCtx := r.handlerContext(session)
	response, err := rt.on(ctx, handlerCtx, payload)
	if err != nil {
		r.logger.Errorf("error while handling %s from %s: %v", call.Action, session.ChargingStationID, err)
		r.sendCallError(ctx, session, ocppj.CallErrorFrom(call, err))
		return
	}
	raw, err := encodePayload(response)
	if err != nil {
		r.sendCallError(ctx, session, ocppj.CallErrorFrom(call, ocppj.NewInternalError(fmt.Sprintf("failed to encode response: %v", err))))
		return
	}
	if !rt.skipValidation && r.validator != nil {
		if err := r.validator.Validate(version, call.Action, schema.Response, raw); err != nil {
			r.logger.Errorf("response to %s failed schema validation: %v", call.Action, err)
			r.sendCallError(ctx, session, ocppj.CallErrorFrom(call, ocppj.NewInternalError("response failed schema validation")))
			return
		}
	}
	result := ocppj.NewCallResultMessage(&ocppj.CallResult{UniqueID: call.UniqueID, Action: call.Action, Payload: raw})
	r.sendMessage(ctx, session, result, true)

	if rt.after == nil {
		return
	}
	if r.inlineAfter {
		r.runAfter(ctx, rt.after, handlerCtx, call.Action, payload)
		return
	}
	// Detached, so an after-hook originating its own Call cannot deadlock
	// against the just-finished response path.
	go r.runAfter(context.WithoutCancel(ctx), rt.after, handlerCtx, call.Action, payload)
}

func (r *Router) runAfter(ctx context.Context, after AfterHandler, handlerCtx *HandlerContext, action string, payload interface{}) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Errorf("after-handler for %s panicked: %v", action, recovered)
		}
	}()
	if err := after(ctx, handlerCtx, payload); err != nil {
		r.logger.Errorf("after-handler for %s failed: %v", action, err)
	}
}

// Call originates an outbound Call to the session's charging station and
// waits for the matched reply. The session call lock is held for the whole
// round trip; it returns the decoded version-specific response payload,
// ocppj.ErrTimeout when no reply arrived in time, or the *ocppj.Error a
// CallError reply named.
func (r *Router) Call(ctx context.Context, payload interface{}, session *Context) (interface{}, error) {
	session.callLock.Lock()
	defer session.callLock.Unlock()

	action, ok := session.Adapter.ActionOf(payload)
	if !ok {
		return nil, ocppj.NewError(ocppj.CodeGenericError, fmt.Sprintf("no action registered for payload type %T", payload))
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	version := r.subprotocol.Version()
	if r.validator != nil {
		if err := r.validator.Validate(version, action, schema.Request, raw); err != nil {
			return nil, err
		}
	}
	call := &ocppj.Call{UniqueID: r.newUniqueID(), Action: action, Payload: raw}
	data, err := ocppj.NewCallMessage(call).Encode()
	if err != nil {
		return nil, err
	}

	inbox := r.pending.add(call.UniqueID)
	if err := session.Send(ctx, data, false); err != nil {
		r.pending.remove(call.UniqueID)
		return nil, err
	}

	timeout := time.NewTimer(r.responseTimeout)
	defer timeout.Stop()
	select {
	case <-ctx.Done():
		r.pending.remove(call.UniqueID)
		return nil, ctx.Err()
	case <-session.Done():
		r.pending.remove(call.UniqueID)
		return nil, ErrSessionClosed
	case <-timeout.C:
		r.pending.remove(call.UniqueID)
		return nil, ocppj.ErrTimeout
	case msg := <-inbox:
		r.pending.remove(call.UniqueID)
		if msg.Type == ocppj.MessageTypeCallError {
			r.logger.Warnf("received a CallError for %s: %s", action, msg.CallError.Description)
			return nil, msg.CallError.Err()
		}
		return r.responsePayload(action, msg.CallResult, session)
	}
}

func (r *Router) handlerContext(session *Context) *HandlerContext {
	return &HandlerContext{
		ChargingStationID: session.ChargingStationID,
		Subprotocol:       session.Subprotocol,
		send: func(ctx context.Context, payload interface{}) (interface{}, error) {
			return r.Call(ctx, payload, session)
		},
	}
}

// requestPayload converts a Call's wire payload into the version-specific
// request shape with snake_case keys.
func (r *Router) requestPayload(call *ocppj.Call, session *Context) (interface{}, error) {
	prototype, ok := session.Adapter.NewRequest(call.Action)
	if !ok {
		return nil, ocppj.NewNotSupported(fmt.Sprintf("action %q is not part of the %v vocabulary", call.Action, session.Adapter.Version()))
	}
	snake, err := ocppj.CamelToSnakeRaw(call.Payload)
	if err != nil {
		return nil, ocppj.NewFormationViolation(fmt.Sprintf("payload is not valid JSON: %v", err))
	}
	if err := gojson.Unmarshal(snake, prototype); err != nil {
		return nil, ocppj.NewFormationViolation(fmt.Sprintf("payload does not match the %s shape: %v", call.Action, err))
	}
	return prototype, nil
}

// responsePayload validates a CallResult against the originating action's
// response schema and decodes it into the version-specific shape.
func (r *Router) responsePayload(action string, result *ocppj.CallResult, session *Context) (interface{}, error) {
	result.Action = action
	if r.validator != nil {
		if err := r.validator.Validate(r.subprotocol.Version(), action, schema.Response, result.Payload); err != nil {
			return nil, err
		}
	}
	prototype, ok := session.Adapter.NewResponse(action)
	if !ok {
		return nil, ocppj.NewNotSupported(fmt.Sprintf("action %q is not part of the %v vocabulary", action, session.Adapter.Version()))
	}
	snake, err := ocppj.CamelToSnakeRaw(result.Payload)
	if err != nil {
		return nil, ocppj.NewFormationViolation(fmt.Sprintf("response payload is not valid JSON: %v", err))
	}
	if err := gojson.Unmarshal(snake, prototype); err != nil {
		return nil, ocppj.NewFormationViolation(fmt.Sprintf("response payload does not match the %s shape: %v", action, err))
	}
	return prototype, nil
}

// encodePayload serializes a handler payload (snake_case shape) to the
// wire form: lowerCamelCase keys, absent optionals stripped.
func encodePayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := gojson.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return ocppj.SnakeToCamelRaw(data)
}

func (r *Router) sendCallError(ctx context.Context, session *Context, callError *ocppj.CallError) {
	r.sendMessage(ctx, session, ocppj.NewCallErrorMessage(callError), true)
}

func (r *Router) sendMessage(ctx context.Context, session *Context, msg *ocppj.Message, isResponse bool) {
	data, err := msg.Encode()
	if err != nil {
		r.logger.Errorf("failed to encode message for %s: %v", session.ChargingStationID, err)
		return
	}
	r.logger.Debugf("%s <- %s", session.ChargingStationID, data)
	if err := session.Send(ctx, data, isResponse); err != nil {
		r.logger.Errorf("failed to send message to %s: %v", session.ChargingStationID, err)
	}
}
