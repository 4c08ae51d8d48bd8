package ocppadapter

import (
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/remotecontrol"

	"ocpp_station_sim/internal/evse/states"
)

func (t *Transport) OnRequestStartTransaction(request *remotecontrol.RequestStartTransactionRequest) (*remotecontrol.RequestStartTransactionResponse, error) {
	evseID := t.station.DefaultEvseID()
	if request.EvseID != nil {
		evseID = *request.EvseID
	}
	entry := t.log.WithField("evse_id", evseID).WithField("remote_start_id", request.RemoteStartID)

	f, err := t.station.Dispatch(evseID, states.RemoteStart{RemoteStartID: request.RemoteStartID, IdToken: request.IDToken.IdToken})
	status := remotecontrol.RequestStartStopStatusRejected
	if err != nil {
		entry.WithError(err).Warnln("remote start rejected")
	} else if r, ok := f.Result(); ok && r == states.Successful {
		status = remotecontrol.RequestStartStopStatusAccepted
	}
	entry.WithField("status", status).Infoln("request start transaction")

	return remotecontrol.NewRequestStartTransactionResponse(status), nil
}

func (t *Transport) OnRequestStopTransaction(request *remotecontrol.RequestStopTransactionRequest) (*remotecontrol.RequestStopTransactionResponse, error) {
	entry := t.log.WithField("transaction_id", request.TransactionID)

	f, err := t.station.RemoteStop(request.TransactionID)
	status := remotecontrol.RequestStartStopStatusRejected
	if err != nil {
		entry.WithError(err).Warnln("remote stop rejected")
	} else if r, ok := f.Result(); ok && r == states.Successful {
		status = remotecontrol.RequestStartStopStatusAccepted
	}
	entry.WithField("status", status).Infoln("request stop transaction")

	return remotecontrol.NewRequestStopTransactionResponse(status), nil
}

func (t *Transport) OnTriggerMessage(request *remotecontrol.TriggerMessageRequest) (*remotecontrol.TriggerMessageResponse, error) {
	requested := string(request.RequestedMessage)
	status := remotecontrol.TriggerMessageStatusNotImplemented
	if t.trigger != nil && t.trigger(requested) {
		status = remotecontrol.TriggerMessageStatusAccepted
	}
	t.log.WithField("requested", requested).WithField("status", status).Infoln("trigger message")

	return remotecontrol.NewTriggerMessageResponse(status), nil
}

// OnUnlockConnector refuses to unlock a connector with an open transaction;
// a connector without one is never locked.
func (t *Transport) OnUnlockConnector(request *remotecontrol.UnlockConnectorRequest) (*remotecontrol.UnlockConnectorResponse, error) {
	status := unlockStatus(t.station.Snapshot(), request.EvseID, request.ConnectorID)
	t.log.WithField("evse_id", request.EvseID).
		WithField("connector_id", request.ConnectorID).
		WithField("status", status).
		Infoln("unlock connector")

	return remotecontrol.NewUnlockConnectorResponse(status), nil
}

func unlockStatus(views []states.EvseView, evseID, connectorID int) remotecontrol.UnlockStatus {
	for _, v := range views {
		if v.ID != evseID {
			continue
		}
		for _, c := range v.Connectors {
			if c.ID != connectorID {
				continue
			}
			if v.TransactionID != "" {
				return remotecontrol.UnlockStatusOngoingAuthorizedTransaction
			}
			return remotecontrol.UnlockStatusUnlocked
		}
	}
	return remotecontrol.UnlockStatusUnknownConnector
}
