package evse

import (
	"errors"
	"fmt"
	"sort"

	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/scheduler"
)

var (
	// ErrInvalidState is returned when a physical action violates the
	// connector or transaction preconditions.
	ErrInvalidState     = errors.New("invalid state")
	ErrUnknownConnector = errors.New("unknown connector")
)

type CableStatus string

const (
	CableStatusUnplugged CableStatus = "UNPLUGGED"
	CableStatusPlugged   CableStatus = "PLUGGED"
	CableStatusLocked    CableStatus = "LOCKED"
)

type Connector struct {
	id          int
	cableStatus CableStatus
}

func (c *Connector) ID() int                  { return c.id }
func (c *Connector) CableStatus() CableStatus { return c.cableStatus }

type Transaction struct {
	id            string
	chargingState message.ChargingState
	seqNo         int
}

func (t *Transaction) ID() string                           { return t.id }
func (t *Transaction) ChargingState() message.ChargingState { return t.chargingState }

// Evse is a single charging port. It is not safe for concurrent use; the
// state manager serializes every access.
type Evse struct {
	id          int
	connectors  []*Connector
	transaction *Transaction
	token       string
	timeout     scheduler.Handle
	armed       bool
}

func New(id int, connectorIDs ...int) *Evse {
	ids := append([]int(nil), connectorIDs...)
	sort.Ints(ids)
	e := &Evse{id: id}
	for _, cid := range ids {
		e.connectors = append(e.connectors, &Connector{id: cid, cableStatus: CableStatusUnplugged})
	}
	return e
}

func (e *Evse) ID() int { return e.id }

func (e *Evse) Connectors() []*Connector {
	return append([]*Connector(nil), e.connectors...)
}

func (e *Evse) FindConnector(connectorID int) (*Connector, error) {
	for _, c := range e.connectors {
		if c.id == connectorID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("evse %d connector %d: %w", e.id, connectorID, ErrUnknownConnector)
}

// PluggedConnector returns the first connector with a cable in it.
func (e *Evse) PluggedConnector() (*Connector, bool) {
	for _, c := range e.connectors {
		if c.cableStatus != CableStatusUnplugged {
			return c, true
		}
	}
	return nil, false
}

func (e *Evse) IsPlugged() bool {
	_, ok := e.PluggedConnector()
	return ok
}

func (e *Evse) Plug(connectorID int) error {
	c, err := e.FindConnector(connectorID)
	if err != nil {
		return err
	}
	if c.cableStatus != CableStatusUnplugged {
		return fmt.Errorf("connector is not available: %d %d: %w", e.id, connectorID, ErrInvalidState)
	}
	c.cableStatus = CableStatusPlugged
	return nil
}

func (e *Evse) Unplug(connectorID int) error {
	c, err := e.FindConnector(connectorID)
	if err != nil {
		return err
	}
	switch c.cableStatus {
	case CableStatusUnplugged:
		return fmt.Errorf("connector is not plugged: %d %d: %w", e.id, connectorID, ErrInvalidState)
	case CableStatusLocked:
		return fmt.Errorf("connector is locked: %d %d: %w", e.id, connectorID, ErrInvalidState)
	}
	c.cableStatus = CableStatusUnplugged
	return nil
}

func (e *Evse) Lock(connectorID int) error {
	c, err := e.FindConnector(connectorID)
	if err != nil {
		return err
	}
	if c.cableStatus != CableStatusPlugged {
		return fmt.Errorf("cannot lock connector %d %d in status %s: %w", e.id, connectorID, c.cableStatus, ErrInvalidState)
	}
	c.cableStatus = CableStatusLocked
	return nil
}

// Unlock releases every locked connector.
func (e *Evse) Unlock() {
	for _, c := range e.connectors {
		if c.cableStatus == CableStatusLocked {
			c.cableStatus = CableStatusPlugged
		}
	}
}

func (e *Evse) Transaction() (*Transaction, bool) {
	return e.transaction, e.transaction != nil
}

func (e *Evse) HasTransaction() bool { return e.transaction != nil }

func (e *Evse) CreateTransaction(id string, state message.ChargingState) error {
	if e.transaction != nil {
		return fmt.Errorf("evse %d already has transaction %s: %w", e.id, e.transaction.id, ErrInvalidState)
	}
	e.transaction = &Transaction{id: id, chargingState: state}
	return nil
}

func (e *Evse) SetChargingState(state message.ChargingState) {
	if e.transaction != nil {
		e.transaction.chargingState = state
	}
}

// NextSeqNo returns the TransactionEvent sequence number for the open
// transaction, starting at 0.
func (e *Evse) NextSeqNo() int {
	if e.transaction == nil {
		return 0
	}
	n := e.transaction.seqNo
	e.transaction.seqNo++
	return n
}

func (e *Evse) StopTransaction() {
	e.transaction = nil
}

func (e *Evse) Token() string     { return e.token }
func (e *Evse) HasToken() bool    { return e.token != "" }
func (e *Evse) SetToken(t string) { e.token = t }
func (e *Evse) ClearToken()       { e.token = "" }

func (e *Evse) ArmConnectionTimeout(h scheduler.Handle) {
	e.timeout = h
	e.armed = true
}

// DisarmConnectionTimeout forgets the armed handle and returns it so the
// caller can cancel it.
func (e *Evse) DisarmConnectionTimeout() (scheduler.Handle, bool) {
	h, ok := e.timeout, e.armed
	e.timeout, e.armed = 0, false
	return h, ok
}
