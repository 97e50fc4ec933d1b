package v201

import "github.com/voltgrid/ocppj/adapter"

// Adapter builds the version adapter for OCPP 2.0.1.
func Adapter() *adapter.Adapter {
	return adapter.New("2.0.1").
		Register(ActionAuthorize, AuthorizeRequest{}, AuthorizeResponse{}).
		Register(ActionBootNotification, BootNotificationRequest{}, BootNotificationResponse{}).
		Register(ActionGetLocalListVersion, GetLocalListVersionRequest{}, GetLocalListVersionResponse{}).
		Register(ActionHeartbeat, HeartbeatRequest{}, HeartbeatResponse{}).
		Register(ActionStatusNotification, StatusNotificationRequest{}, StatusNotificationResponse{})
}
