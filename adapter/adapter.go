// Package adapter maps a negotiated subprotocol to its action vocabulary.
// One adapter exists per OCPP version; it is the only place that knows
// which payload shapes belong to which version.
package adapter

import "reflect"

// Adapter is an immutable registry of action name to request/response
// payload prototypes, populated at startup and read-only thereafter.
type Adapter struct {
	version  string
	requests map[string]reflect.Type
	results  map[string]reflect.Type
	actions  map[reflect.Type]string
}

// New creates an empty Adapter for a protocol version tag, e.g. "2.0.1".
func New(version string) *Adapter {
	return &Adapter{
		version:  version,
		requests: map[string]reflect.Type{},
		results:  map[string]reflect.Type{},
		actions:  map[reflect.Type]string{},
	}
}

// Version returns the protocol version tag.
func (a *Adapter) Version() string {
	return a.version
}

// Register binds an action to its request and response payload shapes.
// Prototypes are passed by value; handlers receive and return pointers to
// fresh instances.
func (a *Adapter) Register(action string, request, response interface{}) *Adapter {
	requestType := baseType(request)
	a.requests[action] = requestType
	a.results[action] = baseType(response)
	a.actions[requestType] = action
	return a
}

// NewRequest returns a pointer to a zero request payload for action.
func (a *Adapter) NewRequest(action string) (interface{}, bool) {
	t, ok := a.requests[action]
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}

// NewResponse returns a pointer to a zero response payload for action.
func (a *Adapter) NewResponse(action string) (interface{}, bool) {
	t, ok := a.results[action]
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}

// ActionOf resolves the action an outbound request payload belongs to.
func (a *Adapter) ActionOf(payload interface{}) (string, bool) {
	action, ok := a.actions[baseType(payload)]
	return action, ok
}

func baseType(value interface{}) reflect.Type {
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
