package states

import (
	"fmt"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
)

// Charging has the cable locked and energy flowing.
type Charging struct{}

func (Charging) Name() string { return "Charging" }
func (Charging) sealed()      {}

func (Charging) OnPlug(c *Context, ev Plug) (*Future, error) {
	return nil, fmt.Errorf("evse %d connector %d: cable already plugged: %w", c.evse.ID(), ev.ConnectorID, evse.ErrInvalidState)
}

func (Charging) OnUnplug(c *Context, ev Unplug) (*Future, error) {
	return nil, fmt.Errorf("evse %d connector %d: cable is locked while charging: %w", c.evse.ID(), ev.ConnectorID, evse.ErrInvalidState)
}

// OnAuthorize stops charging when the token that started it is presented
// again and accepted.
func (Charging) OnAuthorize(c *Context, ev Authorize) (*Future, error) {
	f := newFuture()
	c.deps.Sender.SendAuthorizeAndSubscribe(ev.IdToken, []int{c.evse.ID()},
		func(_ *message.AuthorizeRequest, resp *message.AuthorizeResponse, err error) {
			if err != nil || !resp.Accepted() {
				f.complete(Failed)
				return
			}
			c.reenter(func(c *Context) {
				if _, ok := c.State().(Charging); !ok || c.evse.Token() != ev.IdToken {
					f.complete(Failed)
					return
				}
				c.stopCharging(message.TriggerReasonStopAuthorized, message.StoppedReasonLocal)
				f.complete(Successful)
			})
		})
	return f, nil
}

func (Charging) OnRemoteStart(*Context, RemoteStart) (*Future, error) {
	return notExecuted()
}

func (Charging) OnRemoteStop(c *Context, ev RemoteStop) (*Future, error) {
	if !openTransaction(c, ev.TransactionID) {
		return notExecuted()
	}
	c.stopCharging(message.TriggerReasonRemoteStop, message.StoppedReasonRemote)
	return Completed(Successful), nil
}

func (Charging) OnCancelRemoteStart(*Context, CancelRemoteStart) (*Future, error) {
	return notExecuted()
}
