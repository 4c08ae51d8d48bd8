package states

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/store"
)

func TestPlugMovesToWaitingForAuthorization(t *testing.T) {
	h := newHarness(t, evse.New(1, 1, 2), evse.New(2, 1))

	for _, pair := range [][2]int{{1, 2}, {2, 1}} {
		f := h.dispatch(pair[0], Plug{ConnectorID: pair[1]})

		_, done := f.Result()
		assert.False(t, done, "completes with the status notification round trip")
		assert.Equal(t, WaitingForAuthorization{}, h.state(pair[0]), "state changes before the response")

		conn, err := h.m.slots[pair[0]].evse.FindConnector(pair[1])
		require.NoError(t, err)
		assert.Equal(t, evse.CableStatusPlugged, conn.CableStatus())

		_, err = h.m.Dispatch(pair[0], Plug{ConnectorID: pair[1]})
		assert.ErrorIs(t, err, evse.ErrInvalidState)
	}
}

func TestPlugRejectsPluggedConnector(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.slots[1].evse.Plug(1))

	_, err := h.m.Dispatch(1, Plug{ConnectorID: 1})
	assert.ErrorIs(t, err, evse.ErrInvalidState)
	assert.Equal(t, Available{}, h.state(1))
	assert.Empty(t, h.tr.sent)
}

func TestPlugTransactionPolicy(t *testing.T) {
	cases := []struct {
		name   string
		start  store.TxPoints
		starts bool
	}{
		{"ev connected", store.TxPoints{store.TxPointEVConnected}, true},
		{"ev connected and authorized", store.TxPoints{store.TxPointEVConnected, store.TxPointAuthorized}, true},
		{"power path closed", store.TxPoints{store.TxPointEVConnected, store.TxPointPowerPathClosed}, false},
		{"authorized only", store.TxPoints{store.TxPointAuthorized}, false},
		{"empty", store.TxPoints{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.start = tc.start

			f := h.dispatch(1, Plug{ConnectorID: 1})
			assert.Empty(t, h.transactionEvents(), "decided in the continuation")

			h.resolve(message.StatusNotificationAction, &message.StatusNotificationResponse{})
			requireResult(t, f, Successful)

			events := h.transactionEvents()
			if !tc.starts {
				assert.Empty(t, events)
				assert.Empty(t, h.view(1).TransactionID)
				return
			}
			require.Len(t, events, 1)
			ev := events[0]
			assert.Equal(t, message.TransactionEventStarted, ev.EventType)
			assert.Equal(t, message.TriggerReasonCablePluggedIn, ev.TriggerReason)
			assert.Equal(t, message.ChargingStateEVDetected, ev.TransactionInfo.ChargingState)
			assert.Equal(t, &message.EvseRef{ID: 1, ConnectorID: 1}, ev.Evse)
			assert.Equal(t, 0, ev.SeqNo)
			assert.Equal(t, ev.TransactionInfo.TransactionID, h.view(1).TransactionID)
		})
	}
}

func TestPlugContinuationSkipsWhenCableGone(t *testing.T) {
	h := newHarness(t)

	h.dispatch(1, Plug{ConnectorID: 1})
	h.dispatch(1, Unplug{ConnectorID: 1})
	h.resolve(message.StatusNotificationAction, &message.StatusNotificationResponse{})

	assert.Empty(t, h.transactionEvents())
	assert.Equal(t, Available{}, h.state(1))
}

func TestPlugStatusNotificationFailure(t *testing.T) {
	h := newHarness(t)
	h.tr.err = errors.New("offline")

	f := h.dispatch(1, Plug{ConnectorID: 1})
	got, err := f.Wait(contextWithTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, Failed, got)
	assert.Equal(t, WaitingForAuthorization{}, h.state(1))
	assert.Empty(t, h.transactionEvents())
}

func TestAuthorizeDefaultEvse(t *testing.T) {
	h := newHarness(t, evse.New(1, 1), evse.New(2, 1))
	h.store.start = store.TxPoints{store.TxPointAuthorized}

	f := h.dispatch(2, Authorize{IdToken: "tag"})
	req := h.lastPending(message.AuthorizeAction).req.(*message.AuthorizeRequest)
	assert.Equal(t, []int{2}, req.EvseIDs)

	h.resolve(message.AuthorizeAction, accepted())
	requireResult(t, f, Successful)

	assert.Equal(t, "tag", h.view(1).Token)
	assert.Empty(t, h.view(2).Token)
	assert.Equal(t, Available{}, h.state(1))
	assert.Equal(t, WaitingForPlug{}, h.state(2))

	events := h.transactionEvents()
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Evse.ID)
	assert.Equal(t, message.TriggerReasonAuthorized, events[0].TriggerReason)
	assert.Equal(t, "tag", events[0].IdToken)
}

func TestAuthorizeNamedEvsesShareTransaction(t *testing.T) {
	h := newHarness(t, evse.New(1, 1), evse.New(2, 1), evse.New(3, 1))
	h.store.start = store.TxPoints{store.TxPointAuthorized}

	f := h.dispatch(1, Authorize{IdToken: "tag"})
	h.resolve(message.AuthorizeAction, accepted(2, 3))
	requireResult(t, f, Successful)

	assert.Empty(t, h.view(1).Token)
	assert.Equal(t, "tag", h.view(2).Token)
	assert.Equal(t, "tag", h.view(3).Token)
	assert.Equal(t, WaitingForPlug{}, h.state(1))
	assert.Equal(t, Available{}, h.state(2))
	assert.Equal(t, Available{}, h.state(3))

	events := h.transactionEvents()
	require.Len(t, events, 2)
	assert.Equal(t, events[0].TransactionInfo.TransactionID, events[1].TransactionInfo.TransactionID)
	assert.Equal(t, []int{2, 3}, []int{events[0].Evse.ID, events[1].Evse.ID})
	assert.Equal(t, h.view(2).TransactionID, h.view(3).TransactionID)
}

func TestAuthorizeWithoutAuthorizedStartPoint(t *testing.T) {
	h := newHarness(t, evse.New(1, 1), evse.New(2, 1))
	h.store.start = store.TxPoints{store.TxPointAuthorized, store.TxPointPowerPathClosed}

	f := h.dispatch(1, Authorize{IdToken: "tag"})
	h.resolve(message.AuthorizeAction, accepted(1, 2))
	requireResult(t, f, Successful)

	assert.Empty(t, h.transactionEvents())
	assert.Equal(t, "tag", h.view(1).Token)
	assert.Equal(t, "tag", h.view(2).Token)
	assert.Equal(t, WaitingForPlug{}, h.state(1))
	assert.Equal(t, Available{}, h.state(2))
}

func TestAuthorizeFailsWhenNoTargetTakesToken(t *testing.T) {
	h := newHarness(t, evse.New(1, 1), evse.New(2, 1))
	h.store.start = store.TxPoints{store.TxPointAuthorized}
	require.NoError(t, h.m.Fault(2))

	f := h.dispatch(1, Authorize{IdToken: "tag"})
	h.resolve(message.AuthorizeAction, accepted(2, 9))
	requireResult(t, f, Failed)

	assert.Equal(t, Available{}, h.state(1))
	assert.Equal(t, Faulted{}, h.state(2))
	assert.Empty(t, h.view(1).Token)
	assert.Empty(t, h.view(2).Token)
	assert.Empty(t, h.transactionEvents())
}

func TestAuthorizeRejected(t *testing.T) {
	for _, status := range []message.AuthorizationStatus{
		message.AuthorizationStatusBlocked,
		message.AuthorizationStatusExpired,
		message.AuthorizationStatusInvalid,
		message.AuthorizationStatusUnknown,
	} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t, evse.New(1, 1), evse.New(2, 1))
			h.store.start = store.TxPoints{store.TxPointAuthorized}

			f := h.dispatch(1, Authorize{IdToken: "tag"})
			h.resolve(message.AuthorizeAction, &message.AuthorizeResponse{IdTokenInfo: message.IdTokenInfo{Status: status, EvseIDs: []int{1, 2}}})
			requireResult(t, f, Failed)

			assert.Empty(t, h.transactionEvents())
			for _, id := range []int{1, 2} {
				assert.Equal(t, Available{}, h.state(id))
				assert.Empty(t, h.view(id).Token)
			}
			assert.Empty(t, h.transitions)
		})
	}
}

func TestRemoteStartArmsConnectionTimeout(t *testing.T) {
	h := newHarness(t)

	f := h.dispatch(1, RemoteStart{RemoteStartID: 42, IdToken: "remote"})
	requireResult(t, f, Successful)
	assert.Equal(t, WaitingForPlug{}, h.state(1))

	v := h.view(1)
	assert.NotEmpty(t, v.TransactionID)
	assert.Equal(t, "remote", v.Token)

	notes := h.statusNotifications()
	require.Len(t, notes, 1)
	assert.Equal(t, message.ConnectorStatusOccupied, notes[0].ConnectorStatus)

	events := h.transactionEvents()
	require.Len(t, events, 1)
	assert.Equal(t, message.TriggerReasonRemoteStart, events[0].TriggerReason)
	require.NotNil(t, events[0].TransactionInfo.RemoteStartID)
	assert.Equal(t, 42, *events[0].TransactionInfo.RemoteStartID)

	require.Len(t, h.sched.delays, 1)
	assert.Equal(t, 30*time.Second, h.sched.delays[1])

	require.True(t, h.sched.fire(1))
	assert.Equal(t, Available{}, h.state(1))
	assert.Empty(t, h.view(1).TransactionID)
	assert.Empty(t, h.view(1).Token)

	events = h.transactionEvents()
	require.Len(t, events, 2)
	assert.Equal(t, message.TransactionEventEnded, events[1].EventType)
	assert.Equal(t, message.TriggerReasonEVConnectTimeout, events[1].TriggerReason)
	assert.Equal(t, message.StoppedReasonTimeout, events[1].TransactionInfo.StoppedReason)
	assert.Equal(t, 1, events[1].SeqNo)

	notes = h.statusNotifications()
	assert.Equal(t, message.ConnectorStatusAvailable, notes[len(notes)-1].ConnectorStatus)
}

func TestRemoteStartTimeoutFollowsPolicy(t *testing.T) {
	h := newHarness(t)
	h.store.timeout = 5

	h.dispatch(1, RemoteStart{RemoteStartID: 1, IdToken: "remote"})
	assert.Equal(t, 5*time.Second, h.sched.delays[1])
}

func TestPlugCancelsConnectionTimeout(t *testing.T) {
	h := newHarness(t)

	h.dispatch(1, RemoteStart{RemoteStartID: 1, IdToken: "remote"})
	txID := h.view(1).TransactionID

	f := h.dispatch(1, Plug{ConnectorID: 1})
	assert.True(t, h.sched.cancelled[1])
	assert.False(t, h.sched.fire(1), "cancelled action never runs")
	assert.Equal(t, Charging{}, h.state(1))

	h.resolve(message.StatusNotificationAction, &message.StatusNotificationResponse{})
	requireResult(t, f, Successful)
	assert.Equal(t, txID, h.view(1).TransactionID)
	assert.Equal(t, string(evse.CableStatusLocked), h.view(1).Connectors[0].CableStatus)

	stale := h.dispatch(1, CancelRemoteStart{ConnectorID: 1, TransactionID: txID})
	requireResult(t, stale, NotExecuted)
	assert.Equal(t, Charging{}, h.state(1))
}

func TestStaleCancelRemoteStartIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.dispatch(1, RemoteStart{RemoteStartID: 1, IdToken: "remote"})
	first := h.view(1).TransactionID
	h.dispatch(1, RemoteStop{TransactionID: first})
	h.dispatch(1, RemoteStart{RemoteStartID: 2, IdToken: "remote"})

	f := h.dispatch(1, CancelRemoteStart{ConnectorID: 1, TransactionID: first})
	requireResult(t, f, NotExecuted)
	assert.Equal(t, WaitingForPlug{}, h.state(1))
	assert.NotEqual(t, first, h.view(1).TransactionID)
}

func TestAvailableIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t)

	requireResult(t, h.dispatch(1, Unplug{ConnectorID: 1}), NotExecuted)
	requireResult(t, h.dispatch(1, RemoteStop{TransactionID: "1"}), NotExecuted)
	requireResult(t, h.dispatch(1, CancelRemoteStart{ConnectorID: 1}), NotExecuted)
	assert.Empty(t, h.tr.sent)
	assert.Equal(t, Available{}, h.state(1))
}
