package states

import (
	"fmt"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
)

// WaitingForAuthorization has a cable plugged but no token yet.
type WaitingForAuthorization struct{}

func (WaitingForAuthorization) Name() string { return "WaitingForAuthorization" }
func (WaitingForAuthorization) sealed()      {}

func (WaitingForAuthorization) OnPlug(c *Context, ev Plug) (*Future, error) {
	return nil, fmt.Errorf("evse %d connector %d: cable already plugged: %w", c.evse.ID(), ev.ConnectorID, evse.ErrInvalidState)
}

func (WaitingForAuthorization) OnUnplug(c *Context, ev Unplug) (*Future, error) {
	if err := c.evse.Unplug(ev.ConnectorID); err != nil {
		return nil, err
	}
	c.release(message.TriggerReasonEVDeparted, message.StoppedReasonEVDisconnected, ev.ConnectorID)
	return Completed(Successful), nil
}

func (WaitingForAuthorization) OnAuthorize(c *Context, ev Authorize) (*Future, error) {
	f := newFuture()
	c.deps.Sender.SendAuthorizeAndSubscribe(ev.IdToken, []int{c.evse.ID()},
		func(_ *message.AuthorizeRequest, resp *message.AuthorizeResponse, err error) {
			if err != nil || !resp.Accepted() {
				c.log.WithError(err).WithField("token", ev.IdToken).Infoln("authorization not accepted")
				f.complete(Failed)
				return
			}
			c.reenter(func(c *Context) {
				if _, ok := c.State().(WaitingForAuthorization); !ok {
					f.complete(Failed)
					return
				}
				c.evse.SetToken(ev.IdToken)
				connectorID := c.defaultConnectorID()
				if !c.evse.HasTransaction() {
					if err := c.startTransaction(c.deps.IDs.Next(), message.ChargingStateEVDetected, message.TriggerReasonAuthorized, connectorID, nil); err != nil {
						f.complete(Failed)
						return
					}
				} else {
					c.updateTransaction(message.TriggerReasonAuthorized, connectorID)
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

func (WaitingForAuthorization) OnRemoteStart(c *Context, ev RemoteStart) (*Future, error) {
	connectorID := c.defaultConnectorID()
	c.evse.SetToken(ev.IdToken)
	if !c.evse.HasTransaction() {
		remoteStartID := ev.RemoteStartID
		if err := c.startTransaction(c.deps.IDs.Next(), message.ChargingStateEVDetected, message.TriggerReasonRemoteStart, connectorID, &remoteStartID); err != nil {
			return nil, err
		}
	} else {
		c.updateTransaction(message.TriggerReasonRemoteStart, connectorID)
	}
	if err := c.startCharging(connectorID); err != nil {
		return nil, err
	}
	return Completed(Successful), nil
}

func (WaitingForAuthorization) OnRemoteStop(*Context, RemoteStop) (*Future, error) {
	return notExecuted()
}

func (WaitingForAuthorization) OnCancelRemoteStart(*Context, CancelRemoteStart) (*Future, error) {
	return notExecuted()
}
