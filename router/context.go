package router

import (
	"context"
	"net/http"
	"sync"

	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/adapter"
)

// SendFunc delivers one encoded OCPP-J frame to the charging station. The
// isResponse flag matters only to HTTP-tunneled transports, which must
// distinguish "reply inside this HTTP response" from "new server-initiated
// Call routed through the side channel".
type SendFunc func(ctx context.Context, message []byte, isResponse bool) error

// Scope carries the handshake metadata the transport offered, for
// inspection in connect callbacks (e.g. basic authentication headers).
type Scope struct {
	Path         string
	Header       http.Header
	RemoteAddr   string
	Subprotocols []string
}

// Context is the per-session state shared by the router and the transport:
// one instance per accepted charging-station session, created on accept
// and closed on disconnect.
type Context struct {
	ChargingStationID string
	Subprotocol       ocppj.Subprotocol
	Adapter           *adapter.Adapter
	Scope             *Scope

	send     SendFunc
	callLock sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewContext creates a session context. The supplied ctx bounds the
// session lifetime: cancelling it aborts all outstanding outbound waits.
func NewContext(ctx context.Context, chargingStationID string, subprotocol ocppj.Subprotocol, versionAdapter *adapter.Adapter, scope *Scope, send SendFunc) *Context {
	if scope == nil {
		scope = &Scope{}
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	return &Context{
		ChargingStationID: chargingStationID,
		Subprotocol:       subprotocol,
		Adapter:           versionAdapter,
		Scope:             scope,
		send:              send,
		ctx:               sessionCtx,
		cancel:            cancel,
	}
}

// Send delivers an encoded frame over the session transport.
func (c *Context) Send(ctx context.Context, message []byte, isResponse bool) error {
	return c.send(ctx, message, isResponse)
}

// Context returns the session-scoped context, cancelled on Close.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Done is closed when the session ends.
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close ends the session, waking every outstanding outbound wait with a
// session-closed failure.
func (c *Context) Close() {
	c.cancel()
}

// HandlerContext is the narrow surface an action handler sees: the station
// identity plus a sender capability for server-originated Calls. It holds
// no reference back to the router.
type HandlerContext struct {
	ChargingStationID string
	Subprotocol       ocppj.Subprotocol

	send func(ctx context.Context, payload interface{}) (interface{}, error)
}

// Send originates an outbound Call to the charging station and waits for
// its matched reply. The session call lock is held for the whole round
// trip, so at most one server-originated Call is in flight per session.
func (c *HandlerContext) Send(ctx context.Context, payload interface{}) (interface{}, error) {
	return c.send(ctx, payload)
}
