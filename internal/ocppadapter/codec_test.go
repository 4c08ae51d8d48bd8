package ocppadapter

import (
	"testing"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/authorization"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/availability"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/provisioning"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/remotecontrol"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/transactions"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpp_station_sim/internal/evse/states"
	"ocpp_station_sim/internal/message"
)

func TestStatusNotificationToOCPP(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	wire, err := toOCPP(&message.StatusNotificationRequest{
		Timestamp:       ts,
		ConnectorStatus: message.ConnectorStatusOccupied,
		EvseID:          2,
		ConnectorID:     1,
	})
	require.NoError(t, err)

	req := wire.(*availability.StatusNotificationRequest)
	assert.Equal(t, availability.ConnectorStatusOccupied, req.ConnectorStatus)
	assert.Equal(t, 2, req.EvseID)
	assert.Equal(t, 1, req.ConnectorID)
	assert.True(t, req.Timestamp.Time.Equal(ts))

	_, err = toOCPP(&message.StatusNotificationRequest{ConnectorStatus: "Broken"})
	assert.Error(t, err)
}

func TestTransactionEventToOCPP(t *testing.T) {
	remoteStartID := 7
	wire, err := toOCPP(&message.TransactionEventRequest{
		EventType:     message.TransactionEventStarted,
		Timestamp:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		TriggerReason: message.TriggerReasonCablePluggedIn,
		SeqNo:         3,
		TransactionInfo: message.TransactionInfo{
			TransactionID: "12",
			ChargingState: message.ChargingStateEVDetected,
			RemoteStartID: &remoteStartID,
		},
		Evse:    &message.EvseRef{ID: 1, ConnectorID: 2},
		IdToken: "tag",
	})
	require.NoError(t, err)

	req := wire.(*transactions.TransactionEventRequest)
	assert.Equal(t, transactions.TransactionEventStarted, req.EventType)
	assert.Equal(t, transactions.TriggerReasonCablePluggedIn, req.TriggerReason)
	assert.Equal(t, 3, req.SequenceNo)
	assert.Equal(t, "12", req.TransactionInfo.TransactionID)
	assert.Equal(t, transactions.ChargingStateEVConnected, req.TransactionInfo.ChargingState)
	require.NotNil(t, req.TransactionInfo.RemoteStartID)
	assert.Equal(t, 7, *req.TransactionInfo.RemoteStartID)
	require.NotNil(t, req.Evse)
	assert.Equal(t, 1, req.Evse.ID)
	require.NotNil(t, req.Evse.ConnectorID)
	assert.Equal(t, 2, *req.Evse.ConnectorID)
	require.NotNil(t, req.IDToken)
	assert.Equal(t, types.IdToken{IdToken: "tag", Type: types.IdTokenTypeISO14443}, *req.IDToken)
}

func TestEndedTransactionWithoutToken(t *testing.T) {
	wire, err := toOCPP(&message.TransactionEventRequest{
		EventType:     message.TransactionEventEnded,
		TriggerReason: message.TriggerReasonEVConnectTimeout,
		TransactionInfo: message.TransactionInfo{
			TransactionID: "1",
			ChargingState: message.ChargingStateIdle,
			StoppedReason: message.StoppedReasonTimeout,
		},
	})
	require.NoError(t, err)

	req := wire.(*transactions.TransactionEventRequest)
	assert.Nil(t, req.IDToken)
	assert.Nil(t, req.Evse)
	assert.Equal(t, transactions.ReasonTimeout, req.TransactionInfo.StoppedReason)
	assert.Equal(t, transactions.TriggerReasonEVConnectTimeout, req.TriggerReason)

	_, err = toOCPP(&message.TransactionEventRequest{EventType: message.TransactionEventEnded, TriggerReason: "Whatever"})
	assert.Error(t, err)
}

func TestBootNotificationToOCPP(t *testing.T) {
	wire, err := toOCPP(&message.BootNotificationRequest{Model: "Sim", VendorName: "Acme", SerialNumber: "SN1"})
	require.NoError(t, err)

	req := wire.(*provisioning.BootNotificationRequest)
	assert.Equal(t, provisioning.BootReasonPowerUp, req.Reason)
	assert.Equal(t, "Sim", req.ChargingStation.Model)
	assert.Equal(t, "Acme", req.ChargingStation.VendorName)
	assert.Equal(t, "SN1", req.ChargingStation.SerialNumber)
}

func TestAuthorizeAndHeartbeatToOCPP(t *testing.T) {
	wire, err := toOCPP(&message.AuthorizeRequest{IdToken: "TAG1"})
	require.NoError(t, err)
	assert.Equal(t, "TAG1", wire.(*authorization.AuthorizeRequest).IdToken.IdToken)

	wire, err = toOCPP(&message.HeartbeatRequest{})
	require.NoError(t, err)
	assert.IsType(t, &availability.HeartbeatRequest{}, wire)

	_, err = toOCPP(nil)
	assert.Error(t, err)
}

func TestAuthorizeFromOCPP(t *testing.T) {
	resp, err := fromOCPP(&authorization.AuthorizeResponse{IdTokenInfo: types.IdTokenInfo{
		Status: types.AuthorizationStatusAccepted,
		EvseID: []int{1, 3},
	}})
	require.NoError(t, err)

	auth := resp.(*message.AuthorizeResponse)
	assert.True(t, auth.Accepted())
	assert.Equal(t, []int{1, 3}, auth.IdTokenInfo.EvseIDs)

	resp, err = fromOCPP(&authorization.AuthorizeResponse{IdTokenInfo: types.IdTokenInfo{Status: types.AuthorizationStatusBlocked}})
	require.NoError(t, err)
	assert.False(t, resp.(*message.AuthorizeResponse).Accepted())
}

func TestBootNotificationFromOCPP(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	resp, err := fromOCPP(&provisioning.BootNotificationResponse{
		CurrentTime: types.NewDateTime(now),
		Interval:    120,
		Status:      provisioning.RegistrationStatusAccepted,
	})
	require.NoError(t, err)

	boot := resp.(*message.BootNotificationResponse)
	assert.Equal(t, 120, boot.Interval)
	assert.Equal(t, message.RegistrationStatusAccepted, boot.Status)
	assert.True(t, boot.CurrentTime.Equal(now))
}

func TestOtherFromOCPP(t *testing.T) {
	resp, err := fromOCPP(&availability.StatusNotificationResponse{})
	require.NoError(t, err)
	assert.IsType(t, &message.StatusNotificationResponse{}, resp)

	resp, err = fromOCPP(&transactions.TransactionEventResponse{})
	require.NoError(t, err)
	assert.IsType(t, &message.TransactionEventResponse{}, resp)

	_, err = fromOCPP(&remotecontrol.TriggerMessageResponse{})
	assert.Error(t, err)
}

func TestUnlockStatus(t *testing.T) {
	views := []states.EvseView{
		{ID: 1, Connectors: []states.ConnectorView{{ID: 1}}, TransactionID: "5"},
		{ID: 2, Connectors: []states.ConnectorView{{ID: 1}}},
	}

	assert.Equal(t, remotecontrol.UnlockStatusOngoingAuthorizedTransaction, unlockStatus(views, 1, 1))
	assert.Equal(t, remotecontrol.UnlockStatusUnlocked, unlockStatus(views, 2, 1))
	assert.Equal(t, remotecontrol.UnlockStatusUnknownConnector, unlockStatus(views, 2, 2))
	assert.Equal(t, remotecontrol.UnlockStatusUnknownConnector, unlockStatus(views, 3, 1))
}
