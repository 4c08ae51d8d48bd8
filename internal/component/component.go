// Package component exposes the station policy values as OCPP device model
// variables.
package component

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/store"
)

const (
	TxCtrlr       = "TxCtrlr"
	OCPPCommCtrlr = "OCPPCommCtrlr"

	EVConnectionTimeOut          = "EVConnectionTimeOut"
	TxStartPoint                 = "TxStartPoint"
	TxStopPoint                  = "TxStopPoint"
	NetworkConfigurationPriority = "NetworkConfigurationPriority"
)

type AttributeType string

const (
	AttributeActual AttributeType = "Actual"
	AttributeTarget AttributeType = "Target"
	AttributeMinSet AttributeType = "MinSet"
	AttributeMaxSet AttributeType = "MaxSet"
)

type Status string

const (
	StatusAccepted                  Status = "Accepted"
	StatusRejected                  Status = "Rejected"
	StatusInvalidValue              Status = "InvalidValue"
	StatusUnknownComponent          Status = "UnknownComponent"
	StatusUnknownVariable           Status = "UnknownVariable"
	StatusNotSupportedAttributeType Status = "NotSupportedAttributeType"
)

// Store is the subset of the policy store the variables are backed by.
type Store interface {
	EVConnectionTimeOut() int
	SetEVConnectionTimeOut(seconds int) error
	TxStartPoints() store.TxPoints
	SetTxStartPoints(p store.TxPoints) error
	TxStopPoints() store.TxPoints
	SetTxStopPoints(p store.TxPoints) error
	NetworkConfigurationPriority() []int
	SetNetworkConfigurationPriority(slots []int) error
	HasNetworkConnectionProfile(slot int) bool
}

type Result struct {
	Component     string        `json:"component"`
	Variable      string        `json:"variable"`
	AttributeType AttributeType `json:"attributeType"`
	Value         string        `json:"value,omitempty"`
	Status        Status        `json:"status"`
}

type Registry struct {
	store    Store
	validate *validator.Validate
	log      *logrus.Entry
}

func NewRegistry(s Store, log *logrus.Entry) *Registry {
	return &Registry{store: s, validate: validator.New(), log: log}
}

// Variables lists every supported component and variable pair.
func Variables() [][2]string {
	return [][2]string{
		{TxCtrlr, EVConnectionTimeOut},
		{TxCtrlr, TxStartPoint},
		{TxCtrlr, TxStopPoint},
		{OCPPCommCtrlr, NetworkConfigurationPriority},
	}
}

// All reads the Actual value of every supported variable.
func (r *Registry) All() []Result {
	vars := Variables()
	out := make([]Result, 0, len(vars))
	for _, v := range vars {
		out = append(out, r.GetVariable(v[0], v[1], AttributeActual))
	}
	return out
}

func (r *Registry) GetVariable(component, variable string, attr AttributeType) Result {
	if attr == "" {
		attr = AttributeActual
	}
	res := Result{Component: component, Variable: variable, AttributeType: attr}
	if res.Status = lookup(component, variable); res.Status != StatusAccepted {
		return res
	}
	if attr != AttributeActual {
		res.Status = StatusNotSupportedAttributeType
		return res
	}

	switch variable {
	case EVConnectionTimeOut:
		res.Value = strconv.Itoa(r.store.EVConnectionTimeOut())
	case TxStartPoint:
		res.Value = r.store.TxStartPoints().String()
	case TxStopPoint:
		res.Value = r.store.TxStopPoints().String()
	case NetworkConfigurationPriority:
		slots := r.store.NetworkConfigurationPriority()
		parts := make([]string, len(slots))
		for i, s := range slots {
			parts[i] = strconv.Itoa(s)
		}
		res.Value = strings.Join(parts, ",")
	}
	return res
}

func (r *Registry) SetVariable(component, variable string, attr AttributeType, value string) Result {
	if attr == "" {
		attr = AttributeActual
	}
	res := Result{Component: component, Variable: variable, AttributeType: attr, Value: value}
	if res.Status = lookup(component, variable); res.Status != StatusAccepted {
		return res
	}
	if attr != AttributeActual {
		res.Status = StatusNotSupportedAttributeType
		return res
	}

	var err error
	switch variable {
	case EVConnectionTimeOut:
		if r.validate.Var(value, "required,number") != nil {
			res.Status = StatusInvalidValue
			return res
		}
		seconds, convErr := strconv.Atoi(value)
		if convErr != nil {
			res.Status = StatusInvalidValue
			return res
		}
		err = r.store.SetEVConnectionTimeOut(seconds)
	case TxStartPoint, TxStopPoint:
		// Stored values read back exactly as written.
		points, parseErr := store.ParseTxPoints(value)
		if parseErr != nil || points.String() != value {
			res.Status = StatusInvalidValue
			return res
		}
		if variable == TxStartPoint {
			err = r.store.SetTxStartPoints(points)
		} else {
			err = r.store.SetTxStopPoints(points)
		}
	case NetworkConfigurationPriority:
		slots, ok := r.parsePriority(value)
		if !ok {
			res.Status = StatusInvalidValue
			return res
		}
		err = r.store.SetNetworkConfigurationPriority(slots)
	}

	if err != nil {
		r.log.WithError(err).
			WithField("component", component).
			WithField("variable", variable).
			Errorln("failed to store variable")
		res.Status = StatusRejected
		return res
	}
	res.Status = StatusAccepted
	return res
}

// parsePriority accepts only the canonical comma separated form so the value
// reads back exactly as it was set.
func (r *Registry) parsePriority(value string) ([]int, bool) {
	if value == "" {
		return nil, false
	}
	items := strings.Split(value, ",")
	slots := make([]int, 0, len(items))
	for _, item := range items {
		if r.validate.Var(item, "required,number") != nil {
			return nil, false
		}
		slot, err := strconv.Atoi(item)
		if err != nil || strconv.Itoa(slot) != item {
			return nil, false
		}
		if !r.store.HasNetworkConnectionProfile(slot) {
			return nil, false
		}
		slots = append(slots, slot)
	}
	return slots, true
}

func lookup(component, variable string) Status {
	switch component {
	case TxCtrlr:
		switch variable {
		case EVConnectionTimeOut, TxStartPoint, TxStopPoint:
			return StatusAccepted
		}
		return StatusUnknownVariable
	case OCPPCommCtrlr:
		if variable == NetworkConfigurationPriority {
			return StatusAccepted
		}
		return StatusUnknownVariable
	}
	return StatusUnknownComponent
}
