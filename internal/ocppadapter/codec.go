package ocppadapter

import (
	"fmt"

	"github.com/lorenzodonini/ocpp-go/ocpp"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/authorization"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/availability"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/provisioning"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/transactions"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/types"

	"ocpp_station_sim/internal/message"
)

const defaultTokenType = types.IdTokenTypeISO14443

var connectorStatuses = map[message.ConnectorStatus]availability.ConnectorStatus{
	message.ConnectorStatusAvailable:   availability.ConnectorStatusAvailable,
	message.ConnectorStatusOccupied:    availability.ConnectorStatusOccupied,
	message.ConnectorStatusReserved:    availability.ConnectorStatusReserved,
	message.ConnectorStatusUnavailable: availability.ConnectorStatusUnavailable,
	message.ConnectorStatusFaulted:     availability.ConnectorStatusFaulted,
}

var eventTypes = map[message.TransactionEventType]transactions.TransactionEvent{
	message.TransactionEventStarted: transactions.TransactionEventStarted,
	message.TransactionEventUpdated: transactions.TransactionEventUpdated,
	message.TransactionEventEnded:   transactions.TransactionEventEnded,
}

var triggerReasons = map[message.TriggerReason]transactions.TriggerReason{
	message.TriggerReasonAbnormalCondition:    transactions.TriggerReasonAbnormalCondition,
	message.TriggerReasonAuthorized:           transactions.TriggerReasonAuthorized,
	message.TriggerReasonCablePluggedIn:       transactions.TriggerReasonCablePluggedIn,
	message.TriggerReasonChargingStateChanged: transactions.TriggerReasonChargingStateChanged,
	message.TriggerReasonEVConnectTimeout:     transactions.TriggerReasonEVConnectTimeout,
	message.TriggerReasonEVDeparted:           transactions.TriggerReasonEVDeparted,
	message.TriggerReasonRemoteStart:          transactions.TriggerReasonRemoteStart,
	message.TriggerReasonRemoteStop:           transactions.TriggerReasonRemoteStop,
	message.TriggerReasonStopAuthorized:       transactions.TriggerReasonStopAuthorized,
}

// OCPP 2.0.1 names a detected EV EVConnected.
var chargingStates = map[message.ChargingState]transactions.ChargingState{
	message.ChargingStateCharging:      transactions.ChargingStateCharging,
	message.ChargingStateEVDetected:    transactions.ChargingStateEVConnected,
	message.ChargingStateSuspendedEV:   transactions.ChargingStateSuspendedEV,
	message.ChargingStateSuspendedEVSE: transactions.ChargingStateSuspendedEVSE,
	message.ChargingStateIdle:          transactions.ChargingStateIdle,
}

var stoppedReasons = map[message.StoppedReason]transactions.Reason{
	message.StoppedReasonEVDisconnected: transactions.ReasonEVDisconnected,
	message.StoppedReasonLocal:          transactions.ReasonLocal,
	message.StoppedReasonOther:          transactions.ReasonOther,
	message.StoppedReasonRemote:         transactions.ReasonRemote,
	message.StoppedReasonTimeout:        transactions.ReasonTimeout,
}

// toOCPP builds the ocpp-go request for a station message.
func toOCPP(req message.Request) (ocpp.Request, error) {
	switch r := req.(type) {
	case *message.StatusNotificationRequest:
		status, ok := connectorStatuses[r.ConnectorStatus]
		if !ok {
			return nil, fmt.Errorf("unknown connector status %q", r.ConnectorStatus)
		}
		return availability.NewStatusNotificationRequest(types.NewDateTime(r.Timestamp), status, r.EvseID, r.ConnectorID), nil
	case *message.AuthorizeRequest:
		return authorization.NewAuthorizationRequest(r.IdToken, defaultTokenType), nil
	case *message.TransactionEventRequest:
		return transactionEvent(r)
	case *message.BootNotificationRequest:
		reason := provisioning.BootReasonPowerUp
		if r.Reason != "" {
			reason = provisioning.BootReason(r.Reason)
		}
		wire := provisioning.NewBootNotificationRequest(reason, r.Model, r.VendorName)
		wire.ChargingStation.SerialNumber = r.SerialNumber
		wire.ChargingStation.FirmwareVersion = r.FirmwareVersion
		return wire, nil
	case *message.HeartbeatRequest:
		return availability.NewHeartbeatRequest(), nil
	}
	return nil, fmt.Errorf("unsupported request %T", req)
}

func transactionEvent(r *message.TransactionEventRequest) (*transactions.TransactionEventRequest, error) {
	eventType, ok := eventTypes[r.EventType]
	if !ok {
		return nil, fmt.Errorf("unknown transaction event type %q", r.EventType)
	}
	reason, ok := triggerReasons[r.TriggerReason]
	if !ok {
		return nil, fmt.Errorf("unknown trigger reason %q", r.TriggerReason)
	}
	info := transactions.Transaction{
		TransactionID: r.TransactionInfo.TransactionID,
		ChargingState: chargingStates[r.TransactionInfo.ChargingState],
		StoppedReason: stoppedReasons[r.TransactionInfo.StoppedReason],
		RemoteStartID: r.TransactionInfo.RemoteStartID,
	}

	wire := transactions.NewTransactionEventRequest(eventType, types.NewDateTime(r.Timestamp), reason, r.SeqNo, info)
	if r.IdToken != "" {
		wire.IDToken = &types.IdToken{IdToken: r.IdToken, Type: defaultTokenType}
	}
	if r.Evse != nil {
		connectorID := r.Evse.ConnectorID
		wire.Evse = &types.EVSE{ID: r.Evse.ID, ConnectorID: &connectorID}
	}
	return wire, nil
}

// fromOCPP reads the ocpp-go response into its station message.
func fromOCPP(resp ocpp.Response) (message.Response, error) {
	switch r := resp.(type) {
	case *availability.StatusNotificationResponse:
		return &message.StatusNotificationResponse{}, nil
	case *authorization.AuthorizeResponse:
		return &message.AuthorizeResponse{IdTokenInfo: message.IdTokenInfo{
			Status:  message.AuthorizationStatus(r.IdTokenInfo.Status),
			EvseIDs: r.IdTokenInfo.EvseID,
		}}, nil
	case *transactions.TransactionEventResponse:
		return &message.TransactionEventResponse{}, nil
	case *provisioning.BootNotificationResponse:
		out := &message.BootNotificationResponse{
			Interval: r.Interval,
			Status:   message.RegistrationStatus(r.Status),
		}
		if r.CurrentTime != nil {
			out.CurrentTime = r.CurrentTime.Time
		}
		return out, nil
	case *availability.HeartbeatResponse:
		return &message.HeartbeatResponse{CurrentTime: r.CurrentTime.Time}, nil
	}
	return nil, fmt.Errorf("unsupported response %T", resp)
}
