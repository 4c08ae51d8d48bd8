package states

import (
	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/store"
)

// Available is an idle EVSE with no cable and no token.
type Available struct{}

func (Available) Name() string { return "Available" }
func (Available) sealed()      {}

// OnPlug moves to WaitingForAuthorization straight away. Whether a
// transaction starts is decided once the StatusNotification is answered.
func (Available) OnPlug(c *Context, ev Plug) (*Future, error) {
	if err := c.evse.Plug(ev.ConnectorID); err != nil {
		return nil, err
	}
	connectorID := ev.ConnectorID
	f := newFuture()
	c.SetState(WaitingForAuthorization{})
	c.deps.Sender.SendStatusNotificationAndSubscribe(c.evse.ID(), connectorID, message.ConnectorStatusOccupied,
		func(_ *message.StatusNotificationRequest, _ *message.StatusNotificationResponse, err error) {
			if err != nil {
				c.log.WithError(err).Warnln("status notification failed")
				f.complete(Failed)
				return
			}
			c.reenter(func(c *Context) {
				conn, err := c.evse.FindConnector(connectorID)
				if err != nil || conn.CableStatus() == evse.CableStatusUnplugged || c.evse.HasTransaction() {
					return
				}
				if !c.startPolicyHolds(store.TxPointEVConnected) {
					return
				}
				c.startTransaction(c.deps.IDs.Next(), message.ChargingStateEVDetected, message.TriggerReasonCablePluggedIn, connectorID, nil)
			})
			f.complete(Successful)
		})
	return f, nil
}

func (Available) OnUnplug(*Context, Unplug) (*Future, error) {
	return notExecuted()
}

// OnAuthorize hands the token to the EVSEs named in the response, or to the
// default EVSE when none are named. With Authorized as a start point all of
// them share one new transaction. The EVSE the token was presented on then
// waits for a cable.
func (Available) OnAuthorize(c *Context, ev Authorize) (*Future, error) {
	m, log := c.m, c.log
	dispatchingID := c.evse.ID()
	f := newFuture()
	c.deps.Sender.SendAuthorizeAndSubscribe(ev.IdToken, []int{dispatchingID},
		func(_ *message.AuthorizeRequest, resp *message.AuthorizeResponse, err error) {
			if err != nil || !resp.Accepted() {
				log.WithError(err).WithField("token", ev.IdToken).Infoln("authorization not accepted")
				f.complete(Failed)
				return
			}

			targets := resp.IdTokenInfo.EvseIDs
			if len(targets) == 0 {
				targets = []int{m.DefaultEvseID()}
			}
			txID := ""
			updated := 0
			for _, id := range targets {
				err := m.withEvse(id, func(c *Context) {
					if _, ok := c.State().(Available); !ok {
						c.log.WithField("state", c.State().Name()).Warnln("authorized evse is busy")
						return
					}
					c.evse.SetToken(ev.IdToken)
					if c.startPolicyHolds(store.TxPointAuthorized) && !c.evse.HasTransaction() {
						if txID == "" {
							txID = c.deps.IDs.Next()
						}
						c.startTransaction(txID, message.ChargingStateIdle, message.TriggerReasonAuthorized, c.defaultConnectorID(), nil)
					}
					updated++
				})
				if err != nil {
					log.WithError(err).WithField("target_evse_id", id).Warnln("authorization names an unknown evse")
				}
			}
			if updated == 0 {
				log.WithField("token", ev.IdToken).Warnln("no authorized evse could take the token")
				f.complete(Failed)
				return
			}

			m.withEvse(dispatchingID, func(c *Context) {
				if _, ok := c.State().(Available); ok {
					c.SetState(WaitingForPlug{})
				}
			})
			f.complete(Successful)
		})
	return f, nil
}

// OnRemoteStart opens a transaction without waiting for a cable and arms the
// EVConnectionTimeOut.
func (Available) OnRemoteStart(c *Context, ev RemoteStart) (*Future, error) {
	connectorID := c.connectorOrDefault(ev.ConnectorID)
	if _, err := c.evse.FindConnector(connectorID); err != nil {
		return nil, err
	}
	txID := c.deps.IDs.Next()
	c.evse.SetToken(ev.IdToken)
	c.deps.Sender.SendStatusNotification(c.evse.ID(), connectorID, message.ConnectorStatusOccupied)
	remoteStartID := ev.RemoteStartID
	if err := c.startTransaction(txID, message.ChargingStateIdle, message.TriggerReasonRemoteStart, connectorID, &remoteStartID); err != nil {
		return nil, err
	}
	c.armConnectionTimeout(connectorID, txID)
	c.SetState(WaitingForPlug{})
	return Completed(Successful), nil
}

func (Available) OnRemoteStop(*Context, RemoteStop) (*Future, error) {
	return notExecuted()
}

func (Available) OnCancelRemoteStart(*Context, CancelRemoteStart) (*Future, error) {
	return notExecuted()
}
