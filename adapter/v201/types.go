// Package v201 carries the OCPP 2.0.1 payload vocabulary for the actions
// shipped with this module. Field names follow the handler-facing
// snake_case convention; the codec converts to lowerCamelCase on the wire.
package v201

// Action names.
const (
	ActionAuthorize           = "Authorize"
	ActionBootNotification    = "BootNotification"
	ActionGetLocalListVersion = "GetLocalListVersion"
	ActionHeartbeat           = "Heartbeat"
	ActionStatusNotification  = "StatusNotification"
)

// RegistrationStatus values for BootNotificationResponse.
const (
	RegistrationStatusAccepted = "Accepted"
	RegistrationStatusPending  = "Pending"
	RegistrationStatusRejected = "Rejected"
)

// BootReason values for BootNotificationRequest.
const (
	BootReasonApplicationReset = "ApplicationReset"
	BootReasonFirmwareUpdate   = "FirmwareUpdate"
	BootReasonPowerUp          = "PowerUp"
	BootReasonRemoteReset      = "RemoteReset"
	BootReasonUnknown          = "Unknown"
)

// AuthorizationStatus values for IdTokenInfo.
const (
	AuthorizationStatusAccepted = "Accepted"
	AuthorizationStatusBlocked  = "Blocked"
	AuthorizationStatusExpired  = "Expired"
	AuthorizationStatusInvalid  = "Invalid"
	AuthorizationStatusUnknown  = "Unknown"
)

type ChargingStation struct {
	Model           string  `json:"model"`
	VendorName      string  `json:"vendor_name"`
	SerialNumber    *string `json:"serial_number,omitempty"`
	FirmwareVersion *string `json:"firmware_version,omitempty"`
}

type StatusInfo struct {
	ReasonCode     string  `json:"reason_code"`
	AdditionalInfo *string `json:"additional_info,omitempty"`
}

type IdToken struct {
	IdToken string `json:"id_token"`
	Type    string `json:"type"`
}

type IdTokenInfo struct {
	Status      string  `json:"status"`
	CacheExpiry *string `json:"cache_expiry_date_time,omitempty"`
}

type BootNotificationRequest struct {
	ChargingStation ChargingStation `json:"charging_station"`
	Reason          string          `json:"reason"`
}

type BootNotificationResponse struct {
	CurrentTime string      `json:"current_time"`
	Interval    int         `json:"interval"`
	Status      string      `json:"status"`
	StatusInfo  *StatusInfo `json:"status_info,omitempty"`
}

type HeartbeatRequest struct{}

type HeartbeatResponse struct {
	CurrentTime string `json:"current_time"`
}

type StatusNotificationRequest struct {
	Timestamp       string `json:"timestamp"`
	ConnectorStatus string `json:"connector_status"`
	EvseID          int    `json:"evse_id"`
	ConnectorID     int    `json:"connector_id"`
}

type StatusNotificationResponse struct{}

type AuthorizeRequest struct {
	IdToken IdToken `json:"id_token"`
}

type AuthorizeResponse struct {
	IdTokenInfo IdTokenInfo `json:"id_token_info"`
}

type GetLocalListVersionRequest struct{}

type GetLocalListVersionResponse struct {
	VersionNumber int `json:"version_number"`
}
