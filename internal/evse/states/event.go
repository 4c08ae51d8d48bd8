package states

// Event is something that happened to an EVSE. The set is closed.
type Event interface {
	isEvent()
}

// Plug reports a cable inserted into a connector.
type Plug struct {
	ConnectorID int
}

type Unplug struct {
	ConnectorID int
}

// Authorize reports a token presented at the station.
type Authorize struct {
	IdToken string
}

// RemoteStart is a RequestStartTransaction received from the CSMS. A zero
// ConnectorID selects the first connector of the EVSE.
type RemoteStart struct {
	RemoteStartID int
	IdToken       string
	ConnectorID   int
}

// RemoteStop is a RequestStopTransaction received from the CSMS.
type RemoteStop struct {
	TransactionID string
}

// CancelRemoteStart is raised by the station itself when no cable was
// plugged within EVConnectionTimeOut of a remote start. It only applies
// while TransactionID is still the open transaction.
type CancelRemoteStart struct {
	ConnectorID   int
	TransactionID string
}

func (Plug) isEvent()              {}
func (Unplug) isEvent()            {}
func (Authorize) isEvent()         {}
func (RemoteStart) isEvent()       {}
func (RemoteStop) isEvent()        {}
func (CancelRemoteStart) isEvent() {}
