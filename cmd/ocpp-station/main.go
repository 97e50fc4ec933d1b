// Command ocpp-station is a demo charging station: it connects, sends a
// BootNotification, answers the server's GetLocalListVersion request and
// then heartbeats.
package main

import (
	"fmt"
	"log"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/adapter/v201"
	"go.uber.org/zap"
)

func main() {
	viper.AutomaticEnv()
	viper.SetDefault("CENTRAL_SYSTEM_ENDPOINT_URL", "ws://localhost")
	viper.SetDefault("CENTRAL_SYSTEM_ENDPOINT_PORT", "9000")
	viper.SetDefault("CHARGING_STATION_ID", "CS-001")

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	stationID := viper.GetString("CHARGING_STATION_ID")
	endpoint := fmt.Sprintf("%s:%s/%s",
		viper.GetString("CENTRAL_SYSTEM_ENDPOINT_URL"),
		viper.GetString("CENTRAL_SYSTEM_ENDPOINT_PORT"),
		stationID)

	dialer := websocket.Dialer{Subprotocols: []string{string(ocppj.Subprotocol201)}}
	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		logger.Fatalf("failed to connect to %s: %v", endpoint, err)
	}
	defer conn.Close()
	logger.Infof("connected to %s with %s", endpoint, conn.Subprotocol())

	boot := map[string]interface{}{
		"chargingStation": map[string]interface{}{
			"model":      "Wallbox XYZ",
			"vendorName": "VoltGrid",
		},
		"reason": v201.BootReasonPowerUp,
	}
	if err := sendCall(conn, "boot-1", v201.ActionBootNotification, boot); err != nil {
		logger.Fatalf("failed to send BootNotification: %v", err)
	}

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()
	replies := make(chan []byte)
	go func() {
		defer close(replies)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			replies <- data
		}
	}()

	sequence := 0
	for {
		select {
		case data, ok := <-replies:
			if !ok {
				logger.Infof("connection closed")
				return
			}
			handle(conn, data, logger)
		case <-heartbeat.C:
			sequence++
			uid := fmt.Sprintf("hb-%d", sequence)
			if err := sendCall(conn, uid, v201.ActionHeartbeat, map[string]interface{}{}); err != nil {
				logger.Fatalf("failed to send Heartbeat: %v", err)
			}
		}
	}
}

// handle answers server-originated Calls and logs replies to our own.
func handle(conn *websocket.Conn, data []byte, logger *zap.SugaredLogger) {
	msg, err := ocppj.Decode(data)
	if err != nil {
		logger.Warnf("dropping unparseable frame: %v", err)
		return
	}
	switch msg.Type {
	case ocppj.MessageTypeCall:
		logger.Infof("<- Call %s %s", msg.Call.Action, msg.Call.Payload)
		var payload interface{} = map[string]interface{}{}
		if msg.Call.Action == v201.ActionGetLocalListVersion {
			payload = map[string]interface{}{"versionNumber": 0}
		}
		if err := sendResult(conn, msg.Call.UniqueID, payload); err != nil {
			logger.Errorf("failed to reply to %s: %v", msg.Call.Action, err)
		}
	case ocppj.MessageTypeCallResult:
		logger.Infof("<- CallResult %s %s", msg.CallResult.UniqueID, msg.CallResult.Payload)
	case ocppj.MessageTypeCallError:
		logger.Warnf("<- CallError %s %s: %s", msg.CallError.UniqueID, msg.CallError.Code, msg.CallError.Description)
	}
}

func sendCall(conn *websocket.Conn, uniqueID, action string, payload interface{}) error {
	raw, err := gojson.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := ocppj.NewCallMessage(&ocppj.Call{UniqueID: uniqueID, Action: action, Payload: raw}).Encode()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func sendResult(conn *websocket.Conn, uniqueID string, payload interface{}) error {
	raw, err := gojson.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := ocppj.NewCallResultMessage(&ocppj.CallResult{UniqueID: uniqueID, Payload: raw}).Encode()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
