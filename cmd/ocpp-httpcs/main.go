// Command ocpp-httpcs runs the handler plane of a split deployment: it
// receives tunneled frames over HTTP from a WebSocket proxy and pushes
// server-originated frames back through the proxy's connection endpoint.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/voltgrid/ocppj/channel"
	"github.com/voltgrid/ocppj/examples/provisioning"
	"github.com/voltgrid/ocppj/router"
	"github.com/voltgrid/ocppj/schema"
	"github.com/voltgrid/ocppj/server"
	"github.com/voltgrid/ocppj/server/httptunnel"
	"go.uber.org/zap"
)

func main() {
	viper.AutomaticEnv()
	viper.SetDefault("CENTRAL_SYSTEM_HTTP_ENDPOINT_PORT", "9001")
	viper.SetDefault("CENTRAL_SYSTEM_CALLBACK_API_ENDPOINT_URL", "http://localhost")
	viper.SetDefault("CENTRAL_SYSTEM_CALLBACK_API_ENDPOINT_PORT", "9002")
	viper.SetDefault("CENTRAL_SYSTEM_SCHEMA_DIR", "schemas")

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	ctx := context.Background()
	schemaDir, err := filepath.Abs(viper.GetString("CENTRAL_SYSTEM_SCHEMA_DIR"))
	if err != nil {
		logger.Fatalf("invalid schema dir: %v", err)
	}
	registry := schema.New()
	if err := registry.Load(ctx, "2.0.1", filepath.Join(schemaDir, "v201")); err != nil {
		logger.Fatalf("failed to load 2.0.1 schemas: %v", err)
	}
	if err := registry.Load(ctx, "1.6", filepath.Join(schemaDir, "v16")); err != nil {
		logger.Fatalf("failed to load 1.6 schemas: %v", err)
	}

	app := server.New([]*router.Router{
		provisioning.NewV201Router(logger, router.WithValidator(registry)),
		provisioning.NewV16Router(logger, router.WithValidator(registry)),
	}, server.WithLogger(logger))

	proxyBase := fmt.Sprintf("%s:%s",
		viper.GetString("CENTRAL_SYSTEM_CALLBACK_API_ENDPOINT_URL"),
		viper.GetString("CENTRAL_SYSTEM_CALLBACK_API_ENDPOINT_PORT"))
	toClient := func(ctx context.Context, message []byte, c *router.Context) error {
		url := fmt.Sprintf("%s/connections/%s", proxyBase, c.ChargingStationID)
		response, err := http.Post(url, "application/json", bytes.NewReader(message))
		if err != nil {
			return err
		}
		defer response.Body.Close()
		if response.StatusCode != http.StatusOK {
			return fmt.Errorf("proxy returned %v for %v", response.Status, c.ChargingStationID)
		}
		return nil
	}

	var options []httptunnel.Option
	if endpoint := viper.GetString("CENTRAL_SYSTEM_REDIS_ENDPOINT"); endpoint != "" {
		pipe := channel.NewPipe(redis.NewClient(&redis.Options{Addr: endpoint}))
		// Frames for stations a client-api caller is waiting on go to the
		// pipe instead of the routers.
		options = append(options, httptunnel.WithIntercept(func(ctx context.Context, connectionID string, message []byte) (bool, error) {
			listening, err := pipe.Listening(ctx, connectionID)
			if err != nil || !listening {
				return false, err
			}
			if err := pipe.Send(ctx, connectionID, string(message), time.Minute); err != nil {
				return false, err
			}
			return true, nil
		}))
	}

	handler := httptunnel.New(app, toClient, options...)
	addr := ":" + viper.GetString("CENTRAL_SYSTEM_HTTP_ENDPOINT_PORT")
	logger.Infof("central system handler plane listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
