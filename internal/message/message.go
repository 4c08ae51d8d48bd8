// Package message holds the protocol message shapes exchanged between the
// station core and the CSMS. Wire encoding belongs to the transport.
package message

import "time"

const (
	StatusNotificationAction = "StatusNotification"
	AuthorizeAction          = "Authorize"
	TransactionEventAction   = "TransactionEvent"
	BootNotificationAction   = "BootNotification"
	HeartbeatAction          = "Heartbeat"
)

// Request is an outbound station message.
type Request interface {
	Action() string
}

// Response is the CSMS answer to a Request.
type Response interface {
	Action() string
}

type ConnectorStatus string

const (
	ConnectorStatusAvailable   ConnectorStatus = "Available"
	ConnectorStatusOccupied    ConnectorStatus = "Occupied"
	ConnectorStatusReserved    ConnectorStatus = "Reserved"
	ConnectorStatusUnavailable ConnectorStatus = "Unavailable"
	ConnectorStatusFaulted     ConnectorStatus = "Faulted"
)

type StatusNotificationRequest struct {
	Timestamp       time.Time
	ConnectorStatus ConnectorStatus
	EvseID          int
	ConnectorID     int
}

func (*StatusNotificationRequest) Action() string { return StatusNotificationAction }

type StatusNotificationResponse struct{}

func (*StatusNotificationResponse) Action() string { return StatusNotificationAction }

type AuthorizationStatus string

const (
	AuthorizationStatusAccepted     AuthorizationStatus = "Accepted"
	AuthorizationStatusBlocked      AuthorizationStatus = "Blocked"
	AuthorizationStatusExpired      AuthorizationStatus = "Expired"
	AuthorizationStatusInvalid      AuthorizationStatus = "Invalid"
	AuthorizationStatusNoCredit     AuthorizationStatus = "NoCredit"
	AuthorizationStatusUnknown      AuthorizationStatus = "Unknown"
	AuthorizationStatusConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

type AuthorizeRequest struct {
	IdToken string
	EvseIDs []int
}

func (*AuthorizeRequest) Action() string { return AuthorizeAction }

type IdTokenInfo struct {
	Status AuthorizationStatus
	// EvseIDs restricts the authorization to these EVSEs; empty means the
	// station picks its default EVSE.
	EvseIDs []int
}

type AuthorizeResponse struct {
	IdTokenInfo IdTokenInfo
}

func (*AuthorizeResponse) Action() string { return AuthorizeAction }

func (r *AuthorizeResponse) Accepted() bool {
	return r != nil && r.IdTokenInfo.Status == AuthorizationStatusAccepted
}

type TransactionEventType string

const (
	TransactionEventStarted TransactionEventType = "Started"
	TransactionEventUpdated TransactionEventType = "Updated"
	TransactionEventEnded   TransactionEventType = "Ended"
)

type TriggerReason string

const (
	TriggerReasonAbnormalCondition    TriggerReason = "AbnormalCondition"
	TriggerReasonAuthorized           TriggerReason = "Authorized"
	TriggerReasonCablePluggedIn       TriggerReason = "CablePluggedIn"
	TriggerReasonChargingStateChanged TriggerReason = "ChargingStateChanged"
	TriggerReasonEVConnectTimeout     TriggerReason = "EVConnectTimeout"
	TriggerReasonEVDeparted           TriggerReason = "EVDeparted"
	TriggerReasonRemoteStart          TriggerReason = "RemoteStart"
	TriggerReasonRemoteStop           TriggerReason = "RemoteStop"
	TriggerReasonStopAuthorized       TriggerReason = "StopAuthorized"
)

type ChargingState string

const (
	ChargingStateCharging      ChargingState = "Charging"
	ChargingStateEVDetected    ChargingState = "EVDetected"
	ChargingStateSuspendedEV   ChargingState = "SuspendedEV"
	ChargingStateSuspendedEVSE ChargingState = "SuspendedEVSE"
	ChargingStateIdle          ChargingState = "Idle"
)

type StoppedReason string

const (
	StoppedReasonEVDisconnected StoppedReason = "EVDisconnected"
	StoppedReasonLocal          StoppedReason = "Local"
	StoppedReasonOther          StoppedReason = "Other"
	StoppedReasonRemote         StoppedReason = "Remote"
	StoppedReasonTimeout        StoppedReason = "Timeout"
)

type TransactionInfo struct {
	TransactionID string
	ChargingState ChargingState
	StoppedReason StoppedReason
	RemoteStartID *int
}

type EvseRef struct {
	ID          int
	ConnectorID int
}

type TransactionEventRequest struct {
	EventType       TransactionEventType
	Timestamp       time.Time
	TriggerReason   TriggerReason
	SeqNo           int
	TransactionInfo TransactionInfo
	Evse            *EvseRef
	IdToken         string
}

func (*TransactionEventRequest) Action() string { return TransactionEventAction }

type TransactionEventResponse struct{}

func (*TransactionEventResponse) Action() string { return TransactionEventAction }

type BootNotificationRequest struct {
	Reason          string
	Model           string
	VendorName      string
	SerialNumber    string
	FirmwareVersion string
}

func (*BootNotificationRequest) Action() string { return BootNotificationAction }

type RegistrationStatus string

const (
	RegistrationStatusAccepted RegistrationStatus = "Accepted"
	RegistrationStatusPending  RegistrationStatus = "Pending"
	RegistrationStatusRejected RegistrationStatus = "Rejected"
)

type BootNotificationResponse struct {
	CurrentTime time.Time
	Interval    int
	Status      RegistrationStatus
}

func (*BootNotificationResponse) Action() string { return BootNotificationAction }

type HeartbeatRequest struct{}

func (*HeartbeatRequest) Action() string { return HeartbeatAction }

type HeartbeatResponse struct {
	CurrentTime time.Time
}

func (*HeartbeatResponse) Action() string { return HeartbeatAction }
