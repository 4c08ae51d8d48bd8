// Package command runs operator commands against the station. The control
// HTTP server and the NATS bus share it.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/component"
	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/evse/states"
)

const (
	ActionPlug        = "plug"
	ActionUnplug      = "unplug"
	ActionAuthorize   = "authorize"
	ActionRemoteStart = "remote-start"
	ActionRemoteStop  = "remote-stop"
	ActionFault       = "fault"
	ActionRecover     = "recover"
	ActionEvses       = "evses"
	ActionGetVariable = "get-variable"
	ActionSetVariable = "set-variable"
)

// Result of a command whose outcome was not known before the wait expired.
const ResultPending = "Pending"

// Command is a single operator request. EvseID 0 selects the default EVSE
// and ConnectorID 0 its first connector.
type Command struct {
	Action        string `json:"action" validate:"required,oneof=plug unplug authorize remote-start remote-stop fault recover evses get-variable set-variable"`
	EvseID        int    `json:"evseId" validate:"gte=0"`
	ConnectorID   int    `json:"connectorId" validate:"gte=0"`
	IdToken       string `json:"idToken" validate:"omitempty,max=36"`
	RemoteStartID int    `json:"remoteStartId" validate:"gte=0"`
	TransactionID string `json:"transactionId" validate:"required_if=Action remote-stop,max=36"`
	Component     string `json:"component" validate:"required_if=Action set-variable"`
	Variable      string `json:"variable" validate:"required_if=Action set-variable"`
	AttributeType string `json:"attributeType" validate:"omitempty,oneof=Actual Target MinSet MaxSet"`
	Value         string `json:"value"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	Result    string             `json:"result,omitempty"`
	Evses     []states.EvseView  `json:"evses,omitempty"`
	Variables []component.Result `json:"variables,omitempty"`
	Err       *Error             `json:"error,omitempty"`
}

func errorResponse(code, format string, args ...any) Response {
	return Response{Err: &Error{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// Station is the part of the state manager commands drive.
type Station interface {
	Dispatch(evseID int, ev states.Event) (*states.Future, error)
	RemoteStop(txID string) (*states.Future, error)
	DefaultEvseID() int
	Fault(evseID int) error
	Recover(evseID int) error
	Snapshot() []states.EvseView
}

type Variables interface {
	GetVariable(component, variable string, attr component.AttributeType) component.Result
	SetVariable(component, variable string, attr component.AttributeType, value string) component.Result
	All() []component.Result
}

type Executor struct {
	station   Station
	variables Variables
	validate  *validator.Validate
	log       *logrus.Entry

	// wait bounds how long a command waits for the CSMS to answer.
	wait time.Duration
}

func NewExecutor(station Station, variables Variables, wait time.Duration, log *logrus.Entry) *Executor {
	return &Executor{
		station:   station,
		variables: variables,
		validate:  validator.New(),
		log:       log,
		wait:      wait,
	}
}

func (e *Executor) Execute(ctx context.Context, cmd Command) Response {
	if err := e.validate.Struct(&cmd); err != nil {
		e.log.WithError(err).WithField("action", cmd.Action).Warnln("invalid command")
		return errorResponse("command.format.not.valid", "%v", err)
	}
	entry := e.log.WithField("action", cmd.Action)

	evseID := cmd.EvseID
	if evseID == 0 {
		evseID = e.station.DefaultEvseID()
	}

	switch cmd.Action {
	case ActionPlug, ActionUnplug:
		connectorID, err := e.connector(evseID, cmd.ConnectorID)
		if err != nil {
			return failure(err)
		}
		var ev states.Event = states.Plug{ConnectorID: connectorID}
		if cmd.Action == ActionUnplug {
			ev = states.Unplug{ConnectorID: connectorID}
		}
		return e.await(ctx, entry.WithField("evse_id", evseID))(e.station.Dispatch(evseID, ev))
	case ActionAuthorize:
		token := cmd.IdToken
		if token == "" {
			token = randomToken()
		}
		return e.await(ctx, entry.WithField("token", token))(e.station.Dispatch(evseID, states.Authorize{IdToken: token}))
	case ActionRemoteStart:
		token := cmd.IdToken
		if token == "" {
			token = randomToken()
		}
		return e.await(ctx, entry.WithField("evse_id", evseID))(e.station.Dispatch(evseID, states.RemoteStart{
			RemoteStartID: cmd.RemoteStartID,
			IdToken:       token,
			ConnectorID:   cmd.ConnectorID,
		}))
	case ActionRemoteStop:
		return e.await(ctx, entry.WithField("transaction_id", cmd.TransactionID))(e.station.RemoteStop(cmd.TransactionID))
	case ActionFault:
		if err := e.station.Fault(evseID); err != nil {
			return failure(err)
		}
		return Response{Result: string(states.Successful)}
	case ActionRecover:
		if err := e.station.Recover(evseID); err != nil {
			return failure(err)
		}
		return Response{Result: string(states.Successful)}
	case ActionEvses:
		return Response{Evses: e.station.Snapshot()}
	case ActionGetVariable:
		if cmd.Component == "" && cmd.Variable == "" {
			return Response{Variables: e.variables.All()}
		}
		res := e.variables.GetVariable(cmd.Component, cmd.Variable, component.AttributeType(cmd.AttributeType))
		return Response{Result: string(res.Status), Variables: []component.Result{res}}
	case ActionSetVariable:
		res := e.variables.SetVariable(cmd.Component, cmd.Variable, component.AttributeType(cmd.AttributeType), cmd.Value)
		entry.WithField("variable", cmd.Variable).WithField("status", res.Status).Infoln("set variable")
		return Response{Result: string(res.Status), Variables: []component.Result{res}}
	}
	return errorResponse("command.action.not.found", "no action %q", cmd.Action)
}

// connector resolves a zero connector id to the first connector of the EVSE.
func (e *Executor) connector(evseID, connectorID int) (int, error) {
	if connectorID != 0 {
		return connectorID, nil
	}
	for _, v := range e.station.Snapshot() {
		if v.ID == evseID && len(v.Connectors) > 0 {
			return v.Connectors[0].ID, nil
		}
	}
	return 0, fmt.Errorf("evse %d: %w", evseID, states.ErrUnknownEvse)
}

func (e *Executor) await(ctx context.Context, entry *logrus.Entry) func(*states.Future, error) Response {
	return func(f *states.Future, err error) Response {
		if err != nil {
			entry.WithError(err).Warnln("command rejected")
			return failure(err)
		}
		ctx, cancel := context.WithTimeout(ctx, e.wait)
		defer cancel()
		r, err := f.Wait(ctx)
		if err != nil {
			entry.Infoln("command still pending")
			return Response{Result: ResultPending}
		}
		entry.WithField("result", r).Infoln("command done")
		return Response{Result: string(r)}
	}
}

func failure(err error) Response {
	switch {
	case errors.Is(err, states.ErrUnknownEvse), errors.Is(err, evse.ErrUnknownConnector):
		return errorResponse("evse.not.found", "%v", err)
	case errors.Is(err, states.ErrUnknownTransaction):
		return errorResponse("transaction.not.found", "%v", err)
	case errors.Is(err, evse.ErrInvalidState):
		return errorResponse("command.rejected", "%v", err)
	}
	return errorResponse("command.failed", "%v", err)
}

func randomToken() string {
	return "TAG" + faker.CCNumber()
}
