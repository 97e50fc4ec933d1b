// Package httptunnel serves an Application over plain HTTP POSTs, for
// deployments where a separate proxy owns the WebSocket terminations and
// forwards one frame per request. Responses to inbound Calls ride back in
// the HTTP response body; server-originated Calls are pushed to the
// station through a caller-supplied side channel.
package httptunnel

import (
	"context"
	"io"
	"net/http"

	gojson "github.com/goccy/go-json"
	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/router"
	"github.com/voltgrid/ocppj/server"
)

// RequestContext identifies the tunneled session a frame belongs to.
type RequestContext struct {
	ConnectionID string   `json:"connection_id"`
	Subprotocols []string `json:"subprotocols"`
}

// Event is the envelope a proxy POSTs for each received frame.
type Event struct {
	RequestContext RequestContext `json:"requestContext"`
	Body           string         `json:"body"`
}

// ParseEventFunc extracts the envelope from the request; override it to
// adapt a proxy with a different envelope layout.
type ParseEventFunc func(r *http.Request) (*Event, error)

// FromServerToClientFunc pushes a server-originated frame to the charging
// station through whatever channel reaches the socket owner.
type FromServerToClientFunc func(ctx context.Context, message []byte, c *router.Context) error

// InterceptFunc may claim an inbound frame before it reaches a router.
// Returning true consumes the frame: it is not routed and the tunnel
// response stays empty. An out-of-process caller awaiting a station's
// reply uses this to divert the frame to itself.
type InterceptFunc func(ctx context.Context, connectionID string, message []byte) (bool, error)

// Handler serves one frame per HTTP request.
type Handler struct {
	app        *server.Application
	parseEvent ParseEventFunc
	toClient   FromServerToClientFunc
	intercept  InterceptFunc
	logger     ocppj.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithParseEvent overrides the envelope parser.
func WithParseEvent(parse ParseEventFunc) Option {
	return func(h *Handler) {
		h.parseEvent = parse
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger ocppj.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithIntercept installs a frame interceptor. Intercept errors are logged
// and the frame is routed normally.
func WithIntercept(intercept InterceptFunc) Option {
	return func(h *Handler) {
		h.intercept = intercept
	}
}

// New creates a Handler. toClient is required whenever any router can
// originate Calls; pass nil for a respond-only deployment.
func New(app *server.Application, toClient FromServerToClientFunc, options ...Option) *Handler {
	ret := &Handler{
		app:        app,
		parseEvent: parseEvent,
		toClient:   toClient,
		logger:     app.Logger(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func parseEvent(r *http.Request) (*Event, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	event := &Event{}
	if err := gojson.Unmarshal(data, event); err != nil {
		return nil, err
	}
	return event, nil
}

// ServeHTTP routes one tunneled frame. A reply produced while routing is
// returned in the response body; an empty body means the frame needed no
// reply (it was a CallResult or CallError, or the Call's reply went out
// through the side channel already).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	event, err := h.parseEvent(r)
	if err != nil || event.RequestContext.ConnectionID == "" {
		h.logger.Warnf("dropping malformed tunnel event: %v", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}
	if h.intercept != nil {
		consumed, err := h.intercept(r.Context(), event.RequestContext.ConnectionID, []byte(event.Body))
		if err != nil {
			h.logger.Errorf("intercept failed for %s, routing frame: %v", event.RequestContext.ConnectionID, err)
		} else if consumed {
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	subprotocol, ok := h.app.Negotiate(event.RequestContext.Subprotocols)
	if !ok {
		http.Error(w, "no supported subprotocol offered", http.StatusBadRequest)
		return
	}
	stationRouter, _ := h.app.Router(subprotocol)
	versionAdapter, ok := h.app.Adapter(subprotocol)
	if !ok {
		http.Error(w, "no payload vocabulary for subprotocol", http.StatusBadRequest)
		return
	}

	var reply []byte
	scope := &router.Scope{
		Path:         r.URL.Path,
		Header:       r.Header,
		RemoteAddr:   r.RemoteAddr,
		Subprotocols: event.RequestContext.Subprotocols,
	}
	// The logical session spans many HTTP requests; outbound call waits
	// and detached after-hooks must not die with r.Context().
	var session *router.Context
	send := func(ctx context.Context, message []byte, isResponse bool) error {
		if isResponse {
			reply = message
			return nil
		}
		if h.toClient == nil {
			return ocppj.NewInternalError("no server-to-client channel configured")
		}
		return h.toClient(ctx, message, session)
	}
	session = router.NewContext(context.Background(), event.RequestContext.ConnectionID, subprotocol, versionAdapter, scope, send)

	stationRouter.RouteMessage(r.Context(), []byte(event.Body), session)

	if len(reply) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(reply)
}
