// Command ocpp-clientapi exposes a small REST surface for operator-driven
// calls to connected stations. A request publishes a Call frame on the
// Redis channel (the WebSocket proxy injects it into the station's socket)
// and waits on the pipe for the reply the handler plane diverts back.
package main

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/voltgrid/ocppj"
	v201 "github.com/voltgrid/ocppj/adapter/v201"
	"github.com/voltgrid/ocppj/channel"
	"github.com/voltgrid/ocppj/router"
	"go.uber.org/zap"
)

type clientAPI struct {
	pipe     *channel.Pipe
	pubsub   *channel.PubSub
	pubsubID string
	logger   *zap.SugaredLogger
}

// serveGetLocalListVersion handles POST /get-local-list-version/{id}: it
// sends a GetLocalListVersion Call to the station and relays the reply
// payload. The pipe listener is armed before the frame is published so the
// handler plane's divert cannot miss a fast reply.
func (a *clientAPI) serveGetLocalListVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/get-local-list-version/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "missing charging station id", http.StatusBadRequest)
		return
	}

	call := ocppj.NewCallMessage(&ocppj.Call{
		UniqueID: uuid.NewString(),
		Action:   v201.ActionGetLocalListVersion,
	})
	frame, err := call.Encode()
	if err != nil {
		http.Error(w, "failed to encode call", http.StatusInternalServerError)
		return
	}

	type listenResult struct {
		value string
		err   error
	}
	replies := make(chan listenResult, 1)
	go func() {
		value, err := a.pipe.Listen(r.Context(), id, router.DefaultResponseTimeout)
		replies <- listenResult{value: value, err: err}
	}()

	envelope := channel.Envelope{ChargingStationID: id, Message: string(frame)}
	if err := a.pubsub.Publish(r.Context(), a.pubsubID, envelope); err != nil {
		a.logger.Errorf("failed to publish call for %s: %v", id, err)
		http.Error(w, "failed to reach station", http.StatusBadGateway)
		return
	}

	result := <-replies
	if result.err != nil {
		a.logger.Warnf("no reply from %s: %v", id, result.err)
		http.Error(w, "station did not reply", http.StatusGatewayTimeout)
		return
	}
	reply, err := ocppj.Decode([]byte(result.value))
	if err != nil {
		a.logger.Errorf("undecodable reply from %s: %v", id, err)
		http.Error(w, "undecodable station reply", http.StatusBadGateway)
		return
	}
	switch reply.Type {
	case ocppj.MessageTypeCallResult:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(reply.CallResult.Payload)
	case ocppj.MessageTypeCallError:
		http.Error(w, fmt.Sprintf("station returned %s: %s", reply.CallError.Code, reply.CallError.Description), http.StatusBadGateway)
	default:
		http.Error(w, "unexpected station reply", http.StatusBadGateway)
	}
}

func main() {
	viper.AutomaticEnv()
	viper.SetDefault("CENTRAL_SYSTEM_CLIENT_API_PORT", "9003")
	viper.SetDefault("CENTRAL_SYSTEM_REDIS_ENDPOINT", "localhost:6379")

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	rdb := redis.NewClient(&redis.Options{Addr: viper.GetString("CENTRAL_SYSTEM_REDIS_ENDPOINT")})
	api := &clientAPI{
		pipe:     channel.NewPipe(rdb),
		pubsub:   channel.NewPubSub(rdb),
		pubsubID: viper.GetString("CENTRAL_SYSTEM_PUPSUB_ID"),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/get-local-list-version/", api.serveGetLocalListVersion)
	addr := ":" + viper.GetString("CENTRAL_SYSTEM_CLIENT_API_PORT")
	logger.Infof("client api listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatalf("client api failed: %v", err)
	}
}
