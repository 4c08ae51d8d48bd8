package states

import (
	"fmt"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
)

// Stopped has finished charging with the cable still in.
type Stopped struct{}

func (Stopped) Name() string { return "Stopped" }
func (Stopped) sealed()      {}

func (Stopped) OnPlug(c *Context, ev Plug) (*Future, error) {
	return nil, fmt.Errorf("evse %d connector %d: cable already plugged: %w", c.evse.ID(), ev.ConnectorID, evse.ErrInvalidState)
}

func (Stopped) OnUnplug(c *Context, ev Unplug) (*Future, error) {
	if err := c.evse.Unplug(ev.ConnectorID); err != nil {
		return nil, err
	}
	c.release(message.TriggerReasonEVDeparted, message.StoppedReasonEVDisconnected, ev.ConnectorID)
	return Completed(Successful), nil
}

func (Stopped) OnAuthorize(*Context, Authorize) (*Future, error) {
	return notExecuted()
}

func (Stopped) OnRemoteStart(*Context, RemoteStart) (*Future, error) {
	return notExecuted()
}

func (Stopped) OnRemoteStop(*Context, RemoteStop) (*Future, error) {
	return notExecuted()
}

func (Stopped) OnCancelRemoteStart(*Context, CancelRemoteStart) (*Future, error) {
	return notExecuted()
}
