package states

import (
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/store"
)

// WaitingForPlug holds a token, and possibly a remotely started
// transaction, until a cable arrives.
type WaitingForPlug struct{}

func (WaitingForPlug) Name() string { return "WaitingForPlug" }
func (WaitingForPlug) sealed()      {}

// OnPlug moves to Charging straight away. The connector is locked once the
// StatusNotification is answered, or has failed.
func (WaitingForPlug) OnPlug(c *Context, ev Plug) (*Future, error) {
	if err := c.evse.Plug(ev.ConnectorID); err != nil {
		return nil, err
	}
	c.disarmConnectionTimeout()
	connectorID := ev.ConnectorID
	f := newFuture()
	c.SetState(Charging{})
	c.deps.Sender.SendStatusNotificationAndSubscribe(c.evse.ID(), connectorID, message.ConnectorStatusOccupied,
		func(_ *message.StatusNotificationRequest, _ *message.StatusNotificationResponse, err error) {
			if err != nil {
				c.log.WithError(err).Warnln("status notification failed, starting charging anyway")
			}
			c.reenter(func(c *Context) {
				if _, ok := c.State().(Charging); !ok {
					f.complete(Failed)
					return
				}
				if !c.evse.HasTransaction() {
					reason := message.TriggerReasonChargingStateChanged
					if c.startPolicyHolds(store.TxPointEVConnected) {
						reason = message.TriggerReasonCablePluggedIn
					}
					if err := c.startTransaction(c.deps.IDs.Next(), message.ChargingStateEVDetected, reason, connectorID, nil); err != nil {
						f.complete(Failed)
						return
					}
				} else {
					c.updateTransaction(message.TriggerReasonCablePluggedIn, connectorID)
				}
				if err := c.startCharging(connectorID); err != nil {
					c.log.WithError(err).Warnln("failed to start charging")
					f.complete(Failed)
					return
				}
				f.complete(Successful)
			})
		})
	return f, nil
}

func (WaitingForPlug) OnUnplug(*Context, Unplug) (*Future, error) {
	return notExecuted()
}

func (WaitingForPlug) OnAuthorize(*Context, Authorize) (*Future, error) {
	return notExecuted()
}

func (WaitingForPlug) OnRemoteStart(*Context, RemoteStart) (*Future, error) {
	return notExecuted()
}

func (WaitingForPlug) OnRemoteStop(c *Context, ev RemoteStop) (*Future, error) {
	if !openTransaction(c, ev.TransactionID) {
		return notExecuted()
	}
	c.release(message.TriggerReasonRemoteStop, message.StoppedReasonRemote, c.defaultConnectorID())
	return Completed(Successful), nil
}

// OnCancelRemoteStart gives up on a remote start that never saw a cable. It
// does nothing when the transaction it was armed for is gone or a cable is
// in.
func (WaitingForPlug) OnCancelRemoteStart(c *Context, ev CancelRemoteStart) (*Future, error) {
	if !openTransaction(c, ev.TransactionID) || c.evse.IsPlugged() {
		return notExecuted()
	}
	connectorID := ev.ConnectorID
	if _, err := c.evse.FindConnector(connectorID); err != nil {
		connectorID = c.defaultConnectorID()
	}
	c.log.WithField("transaction_id", ev.TransactionID).Infoln("no cable plugged in time, cancelling remote start")
	c.release(message.TriggerReasonEVConnectTimeout, message.StoppedReasonTimeout, connectorID)
	return Completed(Successful), nil
}

