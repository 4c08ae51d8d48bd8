package ocppadapter

import (
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/provisioning"
	"github.com/lorenzodonini/ocpp-go/ocpp2.0.1/types"

	"ocpp_station_sim/internal/component"
	"ocpp_station_sim/internal/store"
)

// Variables is the device model served to GetVariables and SetVariables.
type Variables interface {
	GetVariable(component, variable string, attr component.AttributeType) component.Result
	SetVariable(component, variable string, attr component.AttributeType, value string) component.Result
}

type Profiles interface {
	SetNetworkConnectionProfile(slot int, p store.NetworkConnectionProfile) error
}

// ResetFunc restarts the station and reports whether the reset was accepted.
type ResetFunc func(immediate bool) bool

// AttachProvisioning wires the device model handlers. Like Attach it must be
// called before Start.
func (t *Transport) AttachProvisioning(v Variables, p Profiles, reset ResetFunc) {
	t.variables = v
	t.profiles = p
	t.reset = reset
}

var getVariableStatuses = map[component.Status]provisioning.GetVariableStatus{
	component.StatusAccepted:                  provisioning.GetVariableStatusAccepted,
	component.StatusRejected:                  provisioning.GetVariableStatusRejected,
	component.StatusUnknownComponent:          provisioning.GetVariableStatusUnknownComponent,
	component.StatusUnknownVariable:           provisioning.GetVariableStatusUnknownVariable,
	component.StatusNotSupportedAttributeType: provisioning.GetVariableStatusNotSupported,
}

var setVariableStatuses = map[component.Status]provisioning.SetVariableStatus{
	component.StatusAccepted:                  provisioning.SetVariableStatusAccepted,
	component.StatusRejected:                  provisioning.SetVariableStatusRejected,
	component.StatusUnknownComponent:          provisioning.SetVariableStatusUnknownComponent,
	component.StatusUnknownVariable:           provisioning.SetVariableStatusUnknownVariable,
	component.StatusNotSupportedAttributeType: provisioning.SetVariableStatusNotSupported,
}

// statusInfo explains a Rejected attribute status. OCPP has no InvalidValue
// status, so the reason travels in the status info.
func statusInfo(s component.Status) *types.StatusInfo {
	if s == component.StatusInvalidValue {
		return &types.StatusInfo{ReasonCode: string(s)}
	}
	return nil
}

func getVariableStatus(s component.Status) provisioning.GetVariableStatus {
	if status, ok := getVariableStatuses[s]; ok {
		return status
	}
	return provisioning.GetVariableStatusRejected
}

func setVariableStatus(s component.Status) provisioning.SetVariableStatus {
	if status, ok := setVariableStatuses[s]; ok {
		return status
	}
	return provisioning.SetVariableStatusRejected
}

func (t *Transport) OnGetVariables(request *provisioning.GetVariablesRequest) (*provisioning.GetVariablesResponse, error) {
	results := make([]provisioning.GetVariableResult, 0, len(request.GetVariableData))
	for _, d := range request.GetVariableData {
		res := t.variables.GetVariable(d.Component.Name, d.Variable.Name, component.AttributeType(d.AttributeType))
		results = append(results, provisioning.GetVariableResult{
			AttributeStatus: getVariableStatus(res.Status),
			AttributeType:   d.AttributeType,
			AttributeValue:  res.Value,
			Component:       d.Component,
			Variable:        d.Variable,
			StatusInfo:      statusInfo(res.Status),
		})
	}
	t.log.WithField("count", len(results)).Infoln("get variables")

	return provisioning.NewGetVariablesResponse(results), nil
}

func (t *Transport) OnSetVariables(request *provisioning.SetVariablesRequest) (*provisioning.SetVariablesResponse, error) {
	results := make([]provisioning.SetVariableResult, 0, len(request.SetVariableData))
	for _, d := range request.SetVariableData {
		res := t.variables.SetVariable(d.Component.Name, d.Variable.Name, component.AttributeType(d.AttributeType), d.AttributeValue)
		t.log.WithField("component", d.Component.Name).
			WithField("variable", d.Variable.Name).
			WithField("status", res.Status).
			Infoln("set variable")
		results = append(results, provisioning.SetVariableResult{
			AttributeType:   d.AttributeType,
			AttributeStatus: setVariableStatus(res.Status),
			Component:       d.Component,
			Variable:        d.Variable,
			StatusInfo:      statusInfo(res.Status),
		})
	}

	return provisioning.NewSetVariablesResponse(results), nil
}

func (t *Transport) OnSetNetworkProfile(request *provisioning.SetNetworkProfileRequest) (*provisioning.SetNetworkProfileResponse, error) {
	entry := t.log.WithField("slot", request.ConfigurationSlot)
	data := request.ConnectionData

	status := provisioning.SetNetworkProfileStatusAccepted
	if request.ConfigurationSlot < 0 || data.CSMSUrl == "" {
		status = provisioning.SetNetworkProfileStatusRejected
	} else if err := t.profiles.SetNetworkConnectionProfile(request.ConfigurationSlot, store.NetworkConnectionProfile{
		OCPPVersion:     string(data.OCPPVersion),
		OCPPTransport:   string(data.OCPPTransport),
		CSMSURL:         data.CSMSUrl,
		MessageTimeout:  data.MessageTimeout,
		SecurityProfile: data.SecurityProfile,
		OCPPInterface:   string(data.OCPPInterface),
	}); err != nil {
		entry.WithError(err).Errorln("failed to store network profile")
		status = provisioning.SetNetworkProfileStatusFailed
	}
	entry.WithField("status", status).Infoln("set network profile")

	return provisioning.NewSetNetworkProfileResponse(status), nil
}

// OnReset accepts a reset of the whole station only.
func (t *Transport) OnReset(request *provisioning.ResetRequest) (*provisioning.ResetResponse, error) {
	status := provisioning.ResetStatusRejected
	if request.EvseID == nil && t.reset != nil && t.reset(request.Type == provisioning.ResetTypeImmediate) {
		status = provisioning.ResetStatusAccepted
	}
	t.log.WithField("type", request.Type).WithField("status", status).Infoln("reset")

	return provisioning.NewResetResponse(status), nil
}

func (t *Transport) OnGetBaseReport(request *provisioning.GetBaseReportRequest) (*provisioning.GetBaseReportResponse, error) {
	t.log.Infoln("get base report not supported")
	return provisioning.NewGetBaseReportResponse(types.GenericDeviceModelStatusNotSupported), nil
}

func (t *Transport) OnGetReport(request *provisioning.GetReportRequest) (*provisioning.GetReportResponse, error) {
	t.log.Infoln("get report not supported")
	return provisioning.NewGetReportResponse(types.GenericDeviceModelStatusNotSupported), nil
}
