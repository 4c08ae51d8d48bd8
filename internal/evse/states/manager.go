// Package states drives every EVSE through its charging lifecycle.
package states

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/scheduler"
	"ocpp_station_sim/internal/store"
)

var (
	ErrUnknownEvse        = errors.New("unknown evse")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// Store supplies the policy values the states consult.
type Store interface {
	EVConnectionTimeOut() int
	TxStartPoints() store.TxPoints
	TxStopPoints() store.TxPoints
}

type Sender interface {
	SendStatusNotificationAndSubscribe(evseID, connectorID int, status message.ConnectorStatus,
		fn func(*message.StatusNotificationRequest, *message.StatusNotificationResponse, error))
	SendStatusNotification(evseID, connectorID int, status message.ConnectorStatus)
	SendAuthorizeAndSubscribe(tokenID string, evseIDs []int,
		fn func(*message.AuthorizeRequest, *message.AuthorizeResponse, error))
	SendTransactionEvent(req *message.TransactionEventRequest)
}

type Scheduler interface {
	Schedule(delay time.Duration, action func()) scheduler.Handle
	Cancel(h scheduler.Handle) bool
}

type IDGenerator interface {
	Next() string
}

// Observer is told about every state replacement. It runs with the EVSE
// locked and must not call back into the Manager.
type Observer func(evseID int, from, to State)

type Dependencies struct {
	Store     Store
	Sender    Sender
	Scheduler Scheduler
	IDs       IDGenerator
	Log       *logrus.Entry
	Observer  Observer
}

type slot struct {
	mu    sync.Mutex
	evse  *evse.Evse
	state State
}

// Manager owns the EVSEs and their current state. Every access to an EVSE
// happens with its lock held; different EVSEs are independent.
type Manager struct {
	deps  Dependencies
	slots map[int]*slot
	ids   []int
}

func NewManager(evses []*evse.Evse, deps Dependencies) *Manager {
	m := &Manager{deps: deps, slots: make(map[int]*slot, len(evses))}
	for _, e := range evses {
		m.slots[e.ID()] = &slot{evse: e, state: Available{}}
		m.ids = append(m.ids, e.ID())
	}
	sort.Ints(m.ids)
	return m
}

func (m *Manager) EvseIDs() []int {
	return append([]int(nil), m.ids...)
}

// DefaultEvseID is the EVSE an authorization applies to when the CSMS names
// none.
func (m *Manager) DefaultEvseID() int {
	if len(m.ids) == 0 {
		return 0
	}
	return m.ids[0]
}

// Dispatch hands ev to the current state of the EVSE. A precondition
// violation is returned as an error wrapping evse.ErrInvalidState.
func (m *Manager) Dispatch(evseID int, ev Event) (*Future, error) {
	var (
		f   *Future
		err error
	)
	werr := m.withEvse(evseID, func(c *Context) {
		c.log.WithField("state", c.State().Name()).Debugf("dispatch %T", ev)
		f, err = dispatch(c, ev)
	})
	if werr != nil {
		return nil, werr
	}
	return f, err
}

func dispatch(c *Context, ev Event) (*Future, error) {
	s := c.State()
	switch ev := ev.(type) {
	case Plug:
		return s.OnPlug(c, ev)
	case Unplug:
		return s.OnUnplug(c, ev)
	case Authorize:
		return s.OnAuthorize(c, ev)
	case RemoteStart:
		return s.OnRemoteStart(c, ev)
	case RemoteStop:
		return s.OnRemoteStop(c, ev)
	case CancelRemoteStart:
		return s.OnCancelRemoteStart(c, ev)
	}
	return nil, fmt.Errorf("unsupported event %T", ev)
}

// RemoteStop routes a RequestStopTransaction to the EVSE holding txID.
func (m *Manager) RemoteStop(txID string) (*Future, error) {
	evseID, ok := m.FindEvseByTransaction(txID)
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txID, ErrUnknownTransaction)
	}
	return m.Dispatch(evseID, RemoteStop{TransactionID: txID})
}

func (m *Manager) FindEvseByTransaction(txID string) (int, bool) {
	for _, id := range m.ids {
		found := false
		m.withEvse(id, func(c *Context) {
			if tx, ok := c.evse.Transaction(); ok && tx.ID() == txID {
				found = true
			}
		})
		if found {
			return id, true
		}
	}
	return 0, false
}

// SetStateForEvse replaces the state of an EVSE from outside a handler.
func (m *Manager) SetStateForEvse(evseID int, s State) error {
	return m.withEvse(evseID, func(c *Context) {
		c.SetState(s)
	})
}

func (m *Manager) State(evseID int) (State, error) {
	var s State
	err := m.withEvse(evseID, func(c *Context) {
		s = c.State()
	})
	return s, err
}

// Fault takes the EVSE out of service. An open transaction is ended and
// every connector is reported Faulted.
func (m *Manager) Fault(evseID int) error {
	return m.withEvse(evseID, func(c *Context) {
		if _, ok := c.State().(Faulted); ok {
			return
		}
		c.disarmConnectionTimeout()
		c.evse.Unlock()
		c.endTransaction(message.TriggerReasonAbnormalCondition, message.StoppedReasonOther, c.defaultConnectorID())
		c.evse.ClearToken()
		for _, conn := range c.evse.Connectors() {
			c.deps.Sender.SendStatusNotification(c.evse.ID(), conn.ID(), message.ConnectorStatusFaulted)
		}
		c.SetState(Faulted{})
	})
}

// Recover returns a faulted EVSE to service.
func (m *Manager) Recover(evseID int) error {
	var err error
	werr := m.withEvse(evseID, func(c *Context) {
		if _, ok := c.State().(Faulted); !ok {
			err = fmt.Errorf("evse %d is %s, not faulted: %w", evseID, c.State().Name(), evse.ErrInvalidState)
			return
		}
		for _, conn := range c.evse.Connectors() {
			status := message.ConnectorStatusAvailable
			if conn.CableStatus() != evse.CableStatusUnplugged {
				status = message.ConnectorStatusOccupied
			}
			c.deps.Sender.SendStatusNotification(c.evse.ID(), conn.ID(), status)
		}
		if c.evse.IsPlugged() {
			c.SetState(WaitingForAuthorization{})
			return
		}
		c.SetState(Available{})
	})
	if werr != nil {
		return werr
	}
	return err
}

type ConnectorView struct {
	ID          int    `json:"id"`
	CableStatus string `json:"cableStatus"`
}

// EvseView is a point in time copy of an EVSE.
type EvseView struct {
	ID            int             `json:"id"`
	State         string          `json:"state"`
	Connectors    []ConnectorView `json:"connectors"`
	TransactionID string          `json:"transactionId,omitempty"`
	ChargingState string          `json:"chargingState,omitempty"`
	Token         string          `json:"token,omitempty"`
}

func (m *Manager) Snapshot() []EvseView {
	views := make([]EvseView, 0, len(m.ids))
	for _, id := range m.ids {
		m.withEvse(id, func(c *Context) {
			v := EvseView{ID: id, State: c.State().Name(), Token: c.evse.Token()}
			for _, conn := range c.evse.Connectors() {
				v.Connectors = append(v.Connectors, ConnectorView{ID: conn.ID(), CableStatus: string(conn.CableStatus())})
			}
			if tx, ok := c.evse.Transaction(); ok {
				v.TransactionID = tx.ID()
				v.ChargingState = string(tx.ChargingState())
			}
			views = append(views, v)
		})
	}
	return views
}

func (m *Manager) withEvse(evseID int, fn func(c *Context)) error {
	s, ok := m.slots[evseID]
	if !ok {
		return fmt.Errorf("evse %d: %w", evseID, ErrUnknownEvse)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Context{
		m:    m,
		deps: &m.deps,
		slot: s,
		evse: s.evse,
		log:  m.deps.Log.WithField("evse_id", evseID),
	})
	return nil
}
