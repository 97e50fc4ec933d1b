// Command ocpp-wsproxy owns the WebSocket terminations of a split
// deployment. Each received frame is tunneled to the handler plane over
// HTTP; frames for stations arrive back either in the tunnel response, on
// the /connections endpoint, or over the Redis pub/sub channel.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/channel"
	"github.com/voltgrid/ocppj/server/httptunnel"
	"go.uber.org/zap"
)

// frameWriter delivers a raw frame to a station socket.
type frameWriter interface {
	write(message []byte) error
}

type connection struct {
	conn      *websocket.Conn
	writeLock sync.Mutex
}

func (c *connection) write(message []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

type proxy struct {
	planeURL    string
	logger      *zap.SugaredLogger
	upgrader    websocket.Upgrader
	connections map[string]*connection
	mux         sync.RWMutex
}

func (p *proxy) register(id string, c *connection) {
	p.mux.Lock()
	p.connections[id] = c
	p.mux.Unlock()
}

func (p *proxy) unregister(id string) {
	p.mux.Lock()
	delete(p.connections, id)
	p.mux.Unlock()
}

func (p *proxy) connection(id string) (*connection, bool) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	c, ok := p.connections[id]
	return c, ok
}

// serveStation terminates one charging-station socket and tunnels its
// frames to the handler plane.
func (p *proxy) serveStation(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	id := segments[len(segments)-1]
	if id == "" {
		http.Error(w, "missing charging station id", http.StatusBadRequest)
		return
	}
	offered := websocket.Subprotocols(r)
	subprotocol, ok := negotiate(offered)
	if !ok {
		http.Error(w, "no supported subprotocol offered", http.StatusBadRequest)
		return
	}
	conn, err := p.upgrader.Upgrade(w, r, http.Header{"Sec-WebSocket-Protocol": {string(subprotocol)}})
	if err != nil {
		p.logger.Errorf("upgrade failed for %s: %v", id, err)
		return
	}
	defer conn.Close()

	c := &connection{conn: conn}
	p.register(id, c)
	defer p.unregister(id)
	p.logger.Infof("%s connected with %s", id, subprotocol)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		p.tunnel(id, offered, data, c)
	}
	p.logger.Infof("%s disconnected", id)
}

// tunnel forwards one frame to the handler plane. When the plane is
// unreachable or errors, a CallError is synthesized locally so the station
// is not left waiting out its timeout.
func (p *proxy) tunnel(id string, subprotocols []string, message []byte, c frameWriter) {
	event := httptunnel.Event{
		RequestContext: httptunnel.RequestContext{ConnectionID: id, Subprotocols: subprotocols},
		Body:           string(message),
	}
	body, err := gojson.Marshal(event)
	if err != nil {
		p.logger.Errorf("failed to encode tunnel event for %s: %v", id, err)
		return
	}
	response, err := http.Post(p.planeURL, "application/json", bytes.NewReader(body))
	if err == nil && response.StatusCode == http.StatusOK {
		defer response.Body.Close()
		reply, err := io.ReadAll(response.Body)
		if err != nil || len(reply) == 0 {
			return
		}
		if err := c.write(reply); err != nil {
			p.logger.Errorf("failed to deliver reply to %s: %v", id, err)
		}
		return
	}
	if response != nil {
		response.Body.Close()
		p.logger.Errorf("handler plane returned %d for %s", response.StatusCode, id)
	} else {
		p.logger.Errorf("handler plane unreachable for %s: %v", id, err)
	}
	if reply, synthErr := ocppj.CallErrorFor(message); synthErr == nil {
		if err := c.write(reply); err != nil {
			p.logger.Errorf("failed to deliver CallError to %s: %v", id, err)
		}
	}
}

// serveInject accepts POST /connections/{id} with a raw frame body and
// writes it to the station's socket.
func (p *proxy) serveInject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/connections/")
	c, ok := p.connection(id)
	if !ok {
		http.Error(w, "unknown connection", http.StatusNotFound)
		return
	}
	message, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if err := c.write(message); err != nil {
		http.Error(w, "delivery failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// consumePubSub delivers frames published on the Redis channel to their
// stations.
func (p *proxy) consumePubSub(ctx context.Context, pubsub *channel.PubSub, key string) {
	err := pubsub.Consume(ctx, key, func(envelope channel.Envelope) {
		c, ok := p.connection(envelope.ChargingStationID)
		if !ok {
			p.logger.Warnf("no connection for %s, dropping published frame", envelope.ChargingStationID)
			return
		}
		if err := c.write([]byte(envelope.Message)); err != nil {
			p.logger.Errorf("failed to deliver published frame to %s: %v", envelope.ChargingStationID, err)
		}
	})
	if err != nil && ctx.Err() == nil {
		p.logger.Errorf("pub/sub consumer stopped: %v", err)
	}
}

func negotiate(offered []string) (ocppj.Subprotocol, bool) {
	for _, candidate := range ocppj.Ranking {
		for _, offer := range offered {
			if ocppj.Subprotocol(offer) == candidate {
				return candidate, true
			}
		}
	}
	return "", false
}

func main() {
	viper.AutomaticEnv()
	viper.SetDefault("CENTRAL_SYSTEM_ENDPOINT_PORT", "9000")
	viper.SetDefault("CENTRAL_SYSTEM_HTTP_ENDPOINT_URL", "http://localhost")
	viper.SetDefault("CENTRAL_SYSTEM_HTTP_ENDPOINT_PORT", "9001")
	viper.SetDefault("CENTRAL_SYSTEM_CALLBACK_API_ENDPOINT_PORT", "9002")

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	p := &proxy{
		planeURL: fmt.Sprintf("%s:%s",
			viper.GetString("CENTRAL_SYSTEM_HTTP_ENDPOINT_URL"),
			viper.GetString("CENTRAL_SYSTEM_HTTP_ENDPOINT_PORT")),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connections: map[string]*connection{},
	}

	if endpoint := viper.GetString("CENTRAL_SYSTEM_REDIS_ENDPOINT"); endpoint != "" {
		rdb := redis.NewClient(&redis.Options{Addr: endpoint})
		pubsub := channel.NewPubSub(rdb)
		go p.consumePubSub(context.Background(), pubsub, viper.GetString("CENTRAL_SYSTEM_PUPSUB_ID"))
	}

	callback := http.NewServeMux()
	callback.HandleFunc("/connections/", p.serveInject)
	go func() {
		addr := ":" + viper.GetString("CENTRAL_SYSTEM_CALLBACK_API_ENDPOINT_PORT")
		logger.Infof("proxy callback api listening on %s", addr)
		if err := http.ListenAndServe(addr, callback); err != nil {
			logger.Fatalf("callback api failed: %v", err)
		}
	}()

	addr := ":" + viper.GetString("CENTRAL_SYSTEM_ENDPOINT_PORT")
	logger.Infof("websocket proxy listening on %s", addr)
	if err := http.ListenAndServe(addr, http.HandlerFunc(p.serveStation)); err != nil {
		logger.Fatalf("proxy failed: %v", err)
	}
}
