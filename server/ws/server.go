// Package ws serves an Application over plain WebSocket connections, one
// long-lived socket per charging station.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/router"
	"github.com/voltgrid/ocppj/server"
)

// Server upgrades incoming HTTP requests to WebSocket sessions and pumps
// their frames through the application's routers.
type Server struct {
	app      *server.Application
	logger   ocppj.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithCheckOrigin overrides the origin check used during the upgrade. All
// origins are accepted by default; charging stations are not browsers.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// New creates a WebSocket server listening on addr.
func New(addr string, app *server.Application, options ...Option) *Server {
	ret := &Server{
		app:    app,
		logger: app.Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, option := range options {
		option(ret)
	}
	ret.http = &http.Server{Addr: addr, Handler: ret}
	return ret
}

// ListenAndServe runs the startup callback and serves until Shutdown or a
// listener failure.
func (s *Server) ListenAndServe() error {
	if err := s.app.Startup(context.Background()); err != nil {
		return err
	}
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and runs the shutdown callback.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if shutdownErr := s.app.Shutdown(ctx); err == nil {
		err = shutdownErr
	}
	return err
}

// ServeHTTP handles one charging-station connection. The station identity
// is the last path segment; the subprotocol is negotiated before the
// upgrade so a refusal is a plain HTTP error, not a broken socket.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chargingStationID := stationID(r.URL.Path)
	if chargingStationID == "" {
		http.Error(w, "missing charging station id", http.StatusBadRequest)
		return
	}
	offered := websocket.Subprotocols(r)
	subprotocol, ok := s.app.Negotiate(offered)
	if !ok {
		s.logger.Warnf("refusing %s: no serveable subprotocol in %v", chargingStationID, offered)
		http.Error(w, "no supported subprotocol offered", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, http.Header{"Sec-WebSocket-Protocol": {string(subprotocol)}})
	if err != nil {
		s.logger.Errorf("upgrade failed for %s: %v", chargingStationID, err)
		return
	}
	s.serve(conn, r, chargingStationID, subprotocol)
}

func (s *Server) serve(conn *websocket.Conn, r *http.Request, chargingStationID string, subprotocol ocppj.Subprotocol) {
	defer conn.Close()

	stationRouter, _ := s.app.Router(subprotocol)
	versionAdapter, ok := s.app.Adapter(subprotocol)
	if !ok {
		s.logger.Errorf("no payload vocabulary for %s, closing %s", subprotocol, chargingStationID)
		return
	}

	var writeLock sync.Mutex
	send := func(ctx context.Context, message []byte, isResponse bool) error {
		writeLock.Lock()
		defer writeLock.Unlock()
		return conn.WriteMessage(websocket.TextMessage, message)
	}

	scope := &router.Scope{
		Path:         r.URL.Path,
		Header:       r.Header,
		RemoteAddr:   r.RemoteAddr,
		Subprotocols: websocket.Subprotocols(r),
	}
	// The session outlives the upgrade request; outbound call waits and
	// detached after-hooks must not die with r.Context().
	session := router.NewContext(context.Background(), chargingStationID, subprotocol, versionAdapter, scope, send)
	defer session.Close()

	if err := s.app.Connect(session.Context(), session); err != nil {
		s.logger.Warnf("rejecting %s: %v", chargingStationID, err)
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "connection rejected")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		return
	}
	s.logger.Debugf("%s connected with %s", chargingStationID, subprotocol)

	closeCode := websocket.CloseAbnormalClosure
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				closeCode = closeErr.Code
			}
			break
		}
		if messageType != websocket.TextMessage {
			s.logger.Warnf("dropping non-text frame from %s", chargingStationID)
			continue
		}
		stationRouter.RouteMessage(session.Context(), data, session)
	}
	session.Close()
	s.app.Disconnect(chargingStationID, subprotocol, closeCode)
	s.logger.Debugf("%s disconnected (%d)", chargingStationID, closeCode)
}

func stationID(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}
