// Command ocpp-centralsystem runs a standalone central system: WebSocket
// terminations and action handlers in one process.
package main

import (
	"context"
	"log"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/voltgrid/ocppj/examples/provisioning"
	"github.com/voltgrid/ocppj/router"
	"github.com/voltgrid/ocppj/schema"
	"github.com/voltgrid/ocppj/server"
	"github.com/voltgrid/ocppj/server/ws"
	"go.uber.org/zap"
)

func main() {
	viper.AutomaticEnv()
	viper.SetDefault("CENTRAL_SYSTEM_ENDPOINT_PORT", "9000")
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

	addr := ":" + viper.GetString("CENTRAL_SYSTEM_ENDPOINT_PORT")
	logger.Infof("central system listening on %s", addr)
	if err := ws.New(addr, app).ListenAndServe(); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
