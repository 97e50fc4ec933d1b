package v16

import "github.com/voltgrid/ocppj/adapter"

// Adapter builds the version adapter for OCPP 1.6.
func Adapter() *adapter.Adapter {
	return adapter.New("1.6").
		Register(ActionAuthorize, AuthorizeRequest{}, AuthorizeResponse{}).
		Register(ActionBootNotification, BootNotificationRequest{}, BootNotificationResponse{}).
		Register(ActionGetLocalListVersion, GetLocalListVersionRequest{}, GetLocalListVersionResponse{}).
		Register(ActionHeartbeat, HeartbeatRequest{}, HeartbeatResponse{}).
		Register(ActionStatusNotification, StatusNotificationRequest{}, StatusNotificationResponse{})
}
