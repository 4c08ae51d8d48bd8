package states

import (
	"time"

	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/store"
)

// Context is what a state handler sees while it holds the EVSE lock. It must
// not be used after the handler returns, except through reenter.
type Context struct {
	m    *Manager
	deps *Dependencies
	slot *slot
	evse *evse.Evse
	log  *logrus.Entry
}

func (c *Context) Evse() *evse.Evse { return c.evse }

func (c *Context) State() State { return c.slot.state }

// SetState replaces the EVSE state. The caller already holds the lock.
func (c *Context) SetState(s State) {
	from := c.slot.state
	if from == s {
		return
	}
	c.slot.state = s
	c.log.WithField("from", from.Name()).WithField("to", s.Name()).Infoln("state changed")
	if c.deps.Observer != nil {
		c.deps.Observer(c.evse.ID(), from, s)
	}
}

// reenter runs fn later under the EVSE lock, typically from a response
// continuation.
func (c *Context) reenter(fn func(c *Context)) {
	if err := c.m.withEvse(c.evse.ID(), fn); err != nil {
		c.log.WithError(err).Errorln("failed to reenter evse")
	}
}

// startPolicyHolds reports whether reaching point starts a transaction.
func (c *Context) startPolicyHolds(point store.TxStartStopPoint) bool {
	points := c.deps.Store.TxStartPoints()
	return points.Contains(point) && !points.Contains(store.TxPointPowerPathClosed)
}

// defaultConnectorID is the plugged connector, or the first one.
func (c *Context) defaultConnectorID() int {
	if conn, ok := c.evse.PluggedConnector(); ok {
		return conn.ID()
	}
	if conns := c.evse.Connectors(); len(conns) > 0 {
		return conns[0].ID()
	}
	return 0
}

func (c *Context) connectorOrDefault(connectorID int) int {
	if connectorID != 0 {
		return connectorID
	}
	return c.defaultConnectorID()
}

func (c *Context) transactionEvent(typ message.TransactionEventType, reason message.TriggerReason, connectorID int) *message.TransactionEventRequest {
	tx, _ := c.evse.Transaction()
	return &message.TransactionEventRequest{
		EventType:     typ,
		TriggerReason: reason,
		SeqNo:         c.evse.NextSeqNo(),
		TransactionInfo: message.TransactionInfo{
			TransactionID: tx.ID(),
			ChargingState: tx.ChargingState(),
		},
		Evse:    &message.EvseRef{ID: c.evse.ID(), ConnectorID: connectorID},
		IdToken: c.evse.Token(),
	}
}

func (c *Context) startTransaction(txID string, state message.ChargingState, reason message.TriggerReason, connectorID int, remoteStartID *int) error {
	if err := c.evse.CreateTransaction(txID, state); err != nil {
		c.log.WithError(err).Warnln("failed to create transaction")
		return err
	}
	req := c.transactionEvent(message.TransactionEventStarted, reason, connectorID)
	req.TransactionInfo.RemoteStartID = remoteStartID
	c.deps.Sender.SendTransactionEvent(req)
	return nil
}

func (c *Context) updateTransaction(reason message.TriggerReason, connectorID int) {
	if !c.evse.HasTransaction() {
		return
	}
	c.deps.Sender.SendTransactionEvent(c.transactionEvent(message.TransactionEventUpdated, reason, connectorID))
}

func (c *Context) endTransaction(reason message.TriggerReason, stopped message.StoppedReason, connectorID int) {
	if !c.evse.HasTransaction() {
		return
	}
	req := c.transactionEvent(message.TransactionEventEnded, reason, connectorID)
	req.TransactionInfo.StoppedReason = stopped
	c.deps.Sender.SendTransactionEvent(req)
	c.evse.StopTransaction()
}

func (c *Context) startCharging(connectorID int) error {
	if err := c.evse.Lock(connectorID); err != nil {
		return err
	}
	c.evse.SetChargingState(message.ChargingStateCharging)
	c.updateTransaction(message.TriggerReasonChargingStateChanged, connectorID)
	c.SetState(Charging{})
	return nil
}

// stopCharging releases the cable. With EVConnected among the stop points
// the transaction stays open until the cable is pulled.
func (c *Context) stopCharging(reason message.TriggerReason, stopped message.StoppedReason) {
	connectorID := c.defaultConnectorID()
	c.evse.Unlock()
	if c.deps.Store.TxStopPoints().Contains(store.TxPointEVConnected) {
		c.evse.SetChargingState(message.ChargingStateSuspendedEVSE)
		c.updateTransaction(reason, connectorID)
	} else {
		c.endTransaction(reason, stopped, connectorID)
	}
	c.SetState(Stopped{})
}

// release returns the EVSE to idle after the cable is gone or never came.
func (c *Context) release(reason message.TriggerReason, stopped message.StoppedReason, connectorID int) {
	c.disarmConnectionTimeout()
	c.endTransaction(reason, stopped, connectorID)
	c.deps.Sender.SendStatusNotification(c.evse.ID(), connectorID, message.ConnectorStatusAvailable)
	c.evse.ClearToken()
	c.SetState(Available{})
}

// armConnectionTimeout schedules a CancelRemoteStart for the open
// transaction after EVConnectionTimeOut seconds.
func (c *Context) armConnectionTimeout(connectorID int, txID string) {
	delay := time.Duration(c.deps.Store.EVConnectionTimeOut()) * time.Second
	m, evseID, log := c.m, c.evse.ID(), c.log
	h := c.deps.Scheduler.Schedule(delay, func() {
		if _, err := m.Dispatch(evseID, CancelRemoteStart{ConnectorID: connectorID, TransactionID: txID}); err != nil {
			log.WithError(err).Warnln("failed to cancel remote start")
		}
	})
	c.evse.ArmConnectionTimeout(h)
}

func (c *Context) disarmConnectionTimeout() {
	if h, ok := c.evse.DisarmConnectionTimeout(); ok {
		c.deps.Scheduler.Cancel(h)
	}
}
