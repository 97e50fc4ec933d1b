// Package v16 carries the OCPP 1.6 payload vocabulary for the actions
// shipped with this module.
package v16

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

// AuthorizationStatus values for IdTagInfo.
const (
	AuthorizationStatusAccepted     = "Accepted"
	AuthorizationStatusBlocked      = "Blocked"
	AuthorizationStatusExpired      = "Expired"
	AuthorizationStatusInvalid      = "Invalid"
	AuthorizationStatusConcurrentTx = "ConcurrentTx"
)

type IdTagInfo struct {
	Status      string  `json:"status"`
	ExpiryDate  *string `json:"expiry_date,omitempty"`
	ParentIdTag *string `json:"parent_id_tag,omitempty"`
}

type BootNotificationRequest struct {
	ChargePointVendor       string  `json:"charge_point_vendor"`
	ChargePointModel        string  `json:"charge_point_model"`
	ChargePointSerialNumber *string `json:"charge_point_serial_number,omitempty"`
	FirmwareVersion         *string `json:"firmware_version,omitempty"`
	Iccid                   *string `json:"iccid,omitempty"`
	Imsi                    *string `json:"imsi,omitempty"`
}

type BootNotificationResponse struct {
	Status      string `json:"status"`
	CurrentTime string `json:"current_time"`
	Interval    int    `json:"interval"`
}

type HeartbeatRequest struct{}

type HeartbeatResponse struct {
	CurrentTime string `json:"current_time"`
}

type StatusNotificationRequest struct {
	ConnectorID     int     `json:"connector_id"`
	ErrorCode       string  `json:"error_code"`
	Status          string  `json:"status"`
	Info            *string `json:"info,omitempty"`
	Timestamp       *string `json:"timestamp,omitempty"`
	VendorID        *string `json:"vendor_id,omitempty"`
	VendorErrorCode *string `json:"vendor_error_code,omitempty"`
}

type StatusNotificationResponse struct{}

type AuthorizeRequest struct {
	IdTag string `json:"id_tag"`
}

type AuthorizeResponse struct {
	IdTagInfo IdTagInfo `json:"id_tag_info"`
}

type GetLocalListVersionRequest struct{}

type GetLocalListVersionResponse struct {
	ListVersion int `json:"list_version"`
}
