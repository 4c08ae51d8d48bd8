package evse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/scheduler"
)

func TestCableTransitions(t *testing.T) {
	e := New(1, 2, 1)
	assert.Equal(t, 1, e.Connectors()[0].ID())

	require.NoError(t, e.Plug(1))
	assert.ErrorIs(t, e.Plug(1), ErrInvalidState)
	assert.True(t, e.IsPlugged())

	require.NoError(t, e.Lock(1))
	assert.ErrorIs(t, e.Unplug(1), ErrInvalidState, "locked cable cannot be pulled")

	e.Unlock()
	c, ok := e.PluggedConnector()
	require.True(t, ok)
	assert.Equal(t, CableStatusPlugged, c.CableStatus())

	require.NoError(t, e.Unplug(1))
	assert.ErrorIs(t, e.Unplug(1), ErrInvalidState)
	assert.False(t, e.IsPlugged())

	assert.ErrorIs(t, e.Plug(9), ErrUnknownConnector)
	assert.ErrorIs(t, e.Lock(2), ErrInvalidState)
}

func TestSingleOpenTransaction(t *testing.T) {
	e := New(1, 1)

	require.NoError(t, e.CreateTransaction("1", message.ChargingStateEVDetected))
	assert.ErrorIs(t, e.CreateTransaction("2", message.ChargingStateIdle), ErrInvalidState)

	tx, ok := e.Transaction()
	require.True(t, ok)
	assert.Equal(t, "1", tx.ID())

	assert.Equal(t, 0, e.NextSeqNo())
	assert.Equal(t, 1, e.NextSeqNo())

	e.SetChargingState(message.ChargingStateCharging)
	assert.Equal(t, message.ChargingStateCharging, tx.ChargingState())

	e.StopTransaction()
	assert.False(t, e.HasTransaction())
	assert.Equal(t, 0, e.NextSeqNo())
	require.NoError(t, e.CreateTransaction("3", message.ChargingStateIdle))
}

func TestTokenAndTimeout(t *testing.T) {
	e := New(1, 1)
	assert.False(t, e.HasToken())
	e.SetToken("abc")
	assert.Equal(t, "abc", e.Token())
	e.ClearToken()
	assert.False(t, e.HasToken())

	_, ok := e.DisarmConnectionTimeout()
	assert.False(t, ok)

	e.ArmConnectionTimeout(scheduler.Handle(7))
	h, ok := e.DisarmConnectionTimeout()
	assert.True(t, ok)
	assert.Equal(t, scheduler.Handle(7), h)
	_, ok = e.DisarmConnectionTimeout()
	assert.False(t, ok)
}
