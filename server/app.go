// Package server hosts the transport-independent application shell: the
// installed routers, version adapters, subprotocol negotiation, and the
// lifecycle callbacks transports invoke on startup, connect, disconnect
// and shutdown.
package server

import (
	"context"

	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/adapter"
	"github.com/voltgrid/ocppj/adapter/v16"
	"github.com/voltgrid/ocppj/adapter/v201"
	"github.com/voltgrid/ocppj/router"
)

// ConnectFunc decides whether a negotiated session is accepted. Returning
// an error rejects the connection before any frame is routed.
type ConnectFunc func(ctx context.Context, c *router.Context) error

// DisconnectFunc observes the end of a session.
type DisconnectFunc func(chargingStationID string, subprotocol ocppj.Subprotocol, closeCode int)

// LifecycleFunc runs on transport startup or shutdown.
type LifecycleFunc func(ctx context.Context) error

// Application aggregates one router per subprotocol and the callbacks that
// frame a session's life. A single Application can be served by several
// transports at once.
type Application struct {
	routers  map[ocppj.Subprotocol]*router.Router
	adapters map[ocppj.Subprotocol]*adapter.Adapter
	logger   ocppj.Logger

	onConnect    ConnectFunc
	onDisconnect DisconnectFunc
	onStartup    LifecycleFunc
	onShutdown   LifecycleFunc
}

// Option configures an Application.
type Option func(*Application)

// WithLogger overrides the default logger.
func WithLogger(logger ocppj.Logger) Option {
	return func(a *Application) {
		a.logger = logger
	}
}

// WithAdapter installs the payload vocabulary for a subprotocol. The 1.6
// and 2.0.1 vocabularies are installed by default; use this to override
// them or to register a 2.0 vocabulary.
func WithAdapter(subprotocol ocppj.Subprotocol, versionAdapter *adapter.Adapter) Option {
	return func(a *Application) {
		a.adapters[subprotocol] = versionAdapter
	}
}

// WithConnectFunc installs the connection acceptance callback.
func WithConnectFunc(connect ConnectFunc) Option {
	return func(a *Application) {
		a.onConnect = connect
	}
}

// WithDisconnectFunc installs the disconnection callback.
func WithDisconnectFunc(disconnect DisconnectFunc) Option {
	return func(a *Application) {
		a.onDisconnect = disconnect
	}
}

// WithStartupFunc installs the transport startup callback.
func WithStartupFunc(startup LifecycleFunc) Option {
	return func(a *Application) {
		a.onStartup = startup
	}
}

// WithShutdownFunc installs the transport shutdown callback.
func WithShutdownFunc(shutdown LifecycleFunc) Option {
	return func(a *Application) {
		a.onShutdown = shutdown
	}
}

// New creates an Application serving the supplied routers.
func New(routers []*router.Router, options ...Option) *Application {
	ret := &Application{
		routers: map[ocppj.Subprotocol]*router.Router{},
		adapters: map[ocppj.Subprotocol]*adapter.Adapter{
			ocppj.Subprotocol16:  v16.Adapter(),
			ocppj.Subprotocol201: v201.Adapter(),
		},
		logger: ocppj.DefaultLogger,
	}
	for _, option := range options {
		option(ret)
	}
	for _, r := range routers {
		ret.Include(r)
	}
	return ret
}

// Include installs a router for its subprotocol, replacing any previous
// router for the same subprotocol.
func (a *Application) Include(r *router.Router) {
	a.routers[r.Subprotocol()] = r
}

// Router returns the router installed for subprotocol.
func (a *Application) Router(subprotocol ocppj.Subprotocol) (*router.Router, bool) {
	r, ok := a.routers[subprotocol]
	return r, ok
}

// Adapter returns the payload vocabulary for subprotocol.
func (a *Application) Adapter(subprotocol ocppj.Subprotocol) (*adapter.Adapter, bool) {
	ret, ok := a.adapters[subprotocol]
	return ret, ok
}

// Logger returns the application logger.
func (a *Application) Logger() ocppj.Logger {
	return a.logger
}

// Negotiate picks the highest-ranked subprotocol that both the client
// offered and a router serves. It reports false when no offer is
// serveable, in which case the transport must refuse the connection.
func (a *Application) Negotiate(offered []string) (ocppj.Subprotocol, bool) {
	for _, candidate := range ocppj.Ranking {
		if _, ok := a.routers[candidate]; !ok {
			continue
		}
		for _, offer := range offered {
			if ocppj.Subprotocol(offer) == candidate {
				return candidate, true
			}
		}
	}
	return "", false
}

// Startup runs the startup callback, if any.
func (a *Application) Startup(ctx context.Context) error {
	if a.onStartup == nil {
		return nil
	}
	return a.onStartup(ctx)
}

// Shutdown runs the shutdown callback, if any.
func (a *Application) Shutdown(ctx context.Context) error {
	if a.onShutdown == nil {
		return nil
	}
	return a.onShutdown(ctx)
}

// Connect runs the acceptance callback; sessions are accepted by default.
func (a *Application) Connect(ctx context.Context, c *router.Context) error {
	if a.onConnect == nil {
		return nil
	}
	return a.onConnect(ctx, c)
}

// Disconnect notifies the disconnection callback, if any.
func (a *Application) Disconnect(chargingStationID string, subprotocol ocppj.Subprotocol, closeCode int) {
	if a.onDisconnect == nil {
		return
	}
	a.onDisconnect(chargingStationID, subprotocol, closeCode)
}
